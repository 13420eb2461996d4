package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"leadscore/internal/client"
	"leadscore/internal/features"
)

func main() {
	var (
		server    = flag.String("server", "http://localhost:8080", "Scoring server base URL")
		batchFile = flag.String("file", "", "JSON file with a {\"companies\": [...]} batch")
		name      = flag.String("name", "", "Company name")
		domain    = flag.String("domain", "", "Company domain")
		marketing = flag.Float64("marketing", 0, "Marketing headcount")
		people    = flag.Float64("people", 0, "Total employee count")
		revenue   = flag.Float64("revenue", -1, "Annual revenue in dollars (omit to use the model default)")
		b2b       = flag.Int("b2b", -1, "1 for B2B, 0 for B2C (omit to use the model default)")
		timeout   = flag.Duration("timeout", 10*time.Second, "Request timeout")
		logLevel  = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	if l, err := zerolog.ParseLevel(*logLevel); err == nil {
		zerolog.SetGlobalLevel(l)
	}

	c := client.New(*server, *timeout)

	if *batchFile != "" {
		runBatch(c, *batchFile)
		return
	}

	raw := features.RawInput{
		CompanyName:        *name,
		Domain:             *domain,
		MarketingHeadcount: marketing,
		PeopleCount:        people,
	}
	if *revenue >= 0 {
		raw.CompanyRevenue = revenue
	}
	if *b2b == 0 || *b2b == 1 {
		raw.IsB2B = b2b
	}

	res, err := c.Score(raw)
	if err != nil {
		if rej, ok := err.(*client.RejectedError); ok {
			printJSON(rej.Record)
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("score request failed")
	}
	printJSON(res)
}

func runBatch(c *client.Client, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("failed to read batch file")
	}

	var req struct {
		Companies []features.RawInput `json:"companies"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("failed to parse batch file")
	}
	if len(req.Companies) == 0 {
		log.Fatal().Str("file", path).Msg("batch file has no companies")
	}

	res, err := c.ScoreBatch(req.Companies)
	if err != nil {
		log.Fatal().Err(err).Msg("batch request failed")
	}
	printJSON(res)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode output")
	}
	fmt.Println(string(out))
}
