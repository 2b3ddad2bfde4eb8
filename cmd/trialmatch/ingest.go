package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/app"
	"github.com/kailas-cloud/trialmatch/internal/domain/trial"
	criteriarepo "github.com/kailas-cloud/trialmatch/internal/repository/criteria"
	trialrepo "github.com/kailas-cloud/trialmatch/internal/repository/trial"
)

const ingestChunk = 500

// trialRecord is one line of an ingest file. Eligibility criteria go to the
// relational store, the rest to the search index.
type trialRecord struct {
	trial.Document
	EligibilityCriteria string `json:"eligibility_criteria,omitempty"`
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Load trial documents (JSON lines) into the search index",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Path to a .jsonl file, or - for stdin", Required: true},
			&cli.BoolFlag{Name: "skip-criteria", Usage: "Do not write eligibility criteria to the criteria store"},
		},
		Action: ingestAction,
	}
}

func ingestAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var in io.Reader = os.Stdin
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}
	records, err := readTrials(in)
	if err != nil {
		return err
	}

	store, err := app.OpenStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	repo := trialrepo.New(store, cfg.Search.Index)

	stored := 0
	for start := 0; start < len(records); start += ingestChunk {
		end := min(start+ingestChunk, len(records))
		docs := make([]trial.Document, 0, end-start)
		for _, r := range records[start:end] {
			docs = append(docs, r.Document)
		}
		n, err := repo.Ingest(c.Context, docs)
		stored += n
		if err != nil {
			return fmt.Errorf("ingest after %d trials: %w", stored, err)
		}
		logger.Debug("Ingested chunk", zap.Int("stored", stored), zap.Int("total", len(records)))
	}
	fmt.Fprintf(c.App.Writer, "Stored %d trials under %s*\n", stored, trial.KeyPrefix)

	if c.Bool("skip-criteria") || cfg.Criteria.DSN == "" {
		return nil
	}
	crit, err := criteriarepo.Open(c.Context, criteriarepo.Config{
		Driver: cfg.Criteria.Driver,
		DSN:    cfg.Criteria.DSN,
		Table:  cfg.Criteria.Table,
	})
	if err != nil {
		return fmt.Errorf("open criteria store: %w", err)
	}
	defer crit.Close()

	written := 0
	for _, r := range records {
		if strings.TrimSpace(r.EligibilityCriteria) == "" {
			continue
		}
		if err := crit.PutCriteria(c.Context, strings.TrimSpace(r.NCTID), r.EligibilityCriteria); err != nil {
			return fmt.Errorf("write criteria for %s: %w", r.NCTID, err)
		}
		written++
	}
	fmt.Fprintf(c.App.Writer, "Stored eligibility criteria for %d trials\n", written)
	return nil
}

// readTrials decodes a stream of JSON objects, one trial each.
func readTrials(r io.Reader) ([]trialRecord, error) {
	dec := json.NewDecoder(r)
	var out []trialRecord
	for {
		var rec trialRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, errors.New("no trial records found")
	}
	return out, nil
}
