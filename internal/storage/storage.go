// Package storage persists scored results for later audit. It uses BoltDB
// as the underlying engine; persistence is optional and the scoring
// pipeline itself never depends on it.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"leadscore/internal/scoring"
)

const scoresBucket = "scores"

// Store provides persistent storage of score results keyed by company
// domain and scoring time, allowing time-range audit queries per domain.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the score database under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "leadscore-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(scoresBucket)); err != nil {
			return fmt.Errorf("create scores bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreResult records one scored result. Keys are "domain_timestamp" so a
// cursor can range-scan a single domain's history.
func (s *Store) StoreResult(res *scoring.Result) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scoresBucket))

		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}

		key := fmt.Sprintf("%s_%d", keyDomain(res), res.ScoredAt.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetResults retrieves results for a domain within a time range, inclusive
// of both endpoints.
func (s *Store) GetResults(domain string, start, end time.Time) ([]scoring.Result, error) {
	var results []scoring.Result

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(scoresBucket))
		c := b.Cursor()

		prefix := []byte(domain + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", domain, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", domain, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}

			var res scoring.Result
			if err := json.Unmarshal(v, &res); err != nil {
				continue // skip malformed records
			}
			results = append(results, res)
		}

		return nil
	})

	return results, err
}

func keyDomain(res *scoring.Result) string {
	if res.Domain != "" {
		return res.Domain
	}
	if res.CompanyName != "" {
		return res.CompanyName
	}
	return "unknown"
}
