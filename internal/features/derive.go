// Package features turns raw company attributes into the fixed feature
// vector the scoring models were trained on. Derivation is the single
// validation gate of the pipeline: the V3 models only apply to companies
// with a marketing team, so marketing_headcount must be present and
// positive, and people_count must be positive (it is a divisor and a
// logarithm argument).
package features

import (
	"fmt"
	"math"
)

// Dim is the number of features both models consume.
const Dim = 5

// Feature positions within a Vector. The order is a contract with the
// offline training pipeline; model artifacts carry the same name list and
// are rejected at load time if it differs.
const (
	IdxMarketingRatio     = 0
	IdxMarketingHeadcount = 1
	IdxLogPeopleCount     = 2
	IdxLogCompanyRevenue  = 3
	IdxIsB2B              = 4
)

// Names lists the canonical feature names in vector order.
var Names = [Dim]string{
	"marketing_to_headcount_ratio",
	"marketing_headcount",
	"log_people_count",
	"log_company_revenue",
	"is_b2b",
}

// Vector is the ordered feature vector consumed by both decision trees.
type Vector [Dim]float64

// MarketingRatio returns the marketing-to-headcount ratio component.
func (v Vector) MarketingRatio() float64 { return v[IdxMarketingRatio] }

// RawInput is one company as submitted by a caller. Optional fields are
// pointers so an absent field is distinguishable from an explicit zero.
type RawInput struct {
	CompanyName        string   `json:"company_name,omitempty"`
	Domain             string   `json:"domain,omitempty"`
	MarketingHeadcount *float64 `json:"marketing_headcount,omitempty"`
	PeopleCount        *float64 `json:"people_count,omitempty"`
	CompanyRevenue     *float64 `json:"company_revenue,omitempty"`
	IsB2B              *int     `json:"is_b2b,omitempty"`
}

// Resolved holds the inputs actually used for inference after default
// substitution. Echoed back to callers so spreadsheet users can see what
// the model saw.
type Resolved struct {
	MarketingHeadcount float64 `json:"marketing_headcount"`
	PeopleCount        float64 `json:"people_count"`
	CompanyRevenue     float64 `json:"company_revenue"`
	IsB2B              int     `json:"is_b2b"`
}

// Defaults are the substitution values for optional inputs. They come from
// the training set medians and are configured, not hard-coded, so a model
// refresh can ship new ones.
type Defaults struct {
	CompanyRevenue float64
	IsB2B          int
}

// ValidationError reports an input that cannot produce a well-defined
// feature vector. It is recoverable per item and never aborts a batch.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Derive validates raw and produces the feature vector plus the resolved
// inputs. Logarithms use ln(1+x) so zero-valued inputs stay in domain; the
// ratio is exact floating-point division with no rounding.
func Derive(raw RawInput, d Defaults) (Vector, Resolved, error) {
	var v Vector

	if raw.MarketingHeadcount == nil {
		return v, Resolved{}, invalid("marketing_headcount", "is required")
	}
	mh := *raw.MarketingHeadcount
	if math.IsNaN(mh) || math.IsInf(mh, 0) {
		return v, Resolved{}, invalid("marketing_headcount", "must be a finite number")
	}
	if mh <= 0 {
		return v, Resolved{}, invalid("marketing_headcount", "must be > 0 (model requires a marketing team)")
	}

	if raw.PeopleCount == nil {
		return v, Resolved{}, invalid("people_count", "is required")
	}
	pc := *raw.PeopleCount
	if math.IsNaN(pc) || math.IsInf(pc, 0) {
		return v, Resolved{}, invalid("people_count", "must be a finite number")
	}
	if pc <= 0 {
		return v, Resolved{}, invalid("people_count", "must be > 0")
	}

	revenue := d.CompanyRevenue
	if raw.CompanyRevenue != nil {
		revenue = *raw.CompanyRevenue
		if math.IsNaN(revenue) || math.IsInf(revenue, 0) {
			return v, Resolved{}, invalid("company_revenue", "must be a finite number")
		}
		if revenue < 0 {
			return v, Resolved{}, invalid("company_revenue", "must be non-negative")
		}
	}

	b2b := d.IsB2B
	if raw.IsB2B != nil {
		b2b = *raw.IsB2B
		if b2b != 0 && b2b != 1 {
			return v, Resolved{}, invalid("is_b2b", "must be 0 or 1")
		}
	}

	v[IdxMarketingRatio] = mh / pc
	v[IdxMarketingHeadcount] = mh
	v[IdxLogPeopleCount] = math.Log1p(pc)
	v[IdxLogCompanyRevenue] = math.Log1p(revenue)
	v[IdxIsB2B] = float64(b2b)

	r := Resolved{
		MarketingHeadcount: mh,
		PeopleCount:        pc,
		CompanyRevenue:     revenue,
		IsB2B:              b2b,
	}
	return v, r, nil
}
