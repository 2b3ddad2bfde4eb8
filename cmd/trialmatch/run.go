package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/trialmatch/internal/app"
	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the matching pipeline for one patient profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Usage: "Path to a patient profile text file"},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Patient profile text"},
			&cli.IntFlag{Name: "max-trials", Usage: "Number of trials to return (default from config)"},
			&cli.IntFlag{Name: "search-size", Usage: "Number of hits to retrieve before truncation"},
			&cli.BoolFlag{Name: "skip-masking", Usage: "Do not mask identifiers before extraction"},
			&cli.BoolFlag{Name: "no-enrich", Usage: "Search with extracted terms only"},
			&cli.BoolFlag{Name: "no-cache", Usage: "Bypass the term cache"},
			&cli.BoolFlag{Name: "match-criteria", Usage: "Classify eligibility criteria for each trial"},
			&cli.StringFlag{Name: "mode", Usage: "Classification mode: individual or whole"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output format: text or json", Value: "text"},
			&cli.StringFlag{Name: "save", Usage: "Also write the JSON response to this file"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	profile, err := readProfile(c.String("profile"), c.String("text"))
	if err != nil {
		return err
	}
	if o := c.String("output"); o != "text" && o != "json" {
		return fmt.Errorf("--output must be text or json, got %q", o)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	rc := runConfig(c, a.RunConfig())
	resp, err := a.Pipeline.Run(c.Context, profile, rc)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) {
			return fmt.Errorf("%w (is the index created and populated?)", err)
		}
		return err
	}

	if path := c.String("save"); path != "" {
		if err := writeJSONFile(path, resp); err != nil {
			return err
		}
	}
	if c.String("output") == "json" {
		return writeJSON(c.App.Writer, resp)
	}
	printResponse(c.App.Writer, resp)
	return nil
}

// runConfig applies command flags that were set on top of base.
func runConfig(c *cli.Context, base pipeline.Config) pipeline.Config {
	rc := base
	if c.IsSet("max-trials") {
		rc.MaxTrials = c.Int("max-trials")
	}
	if c.IsSet("search-size") {
		rc.SearchSize = c.Int("search-size")
	}
	if c.Bool("skip-masking") {
		rc.SkipMasking = true
	}
	if c.Bool("no-enrich") {
		rc.UseEnrichedKeywords = false
	}
	if c.Bool("no-cache") {
		rc.UseCache = false
	}
	if c.Bool("match-criteria") {
		rc.MatchCriteria = true
	}
	if c.IsSet("mode") {
		rc.ClassificationMode = criteria.Mode(c.String("mode"))
	}
	return rc
}

func readProfile(path, text string) (string, error) {
	switch {
	case path != "" && text != "":
		return "", errors.New("use either --profile or --text, not both")
	case path == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read profile from stdin: %w", err)
		}
		return string(data), nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read profile: %w", err)
		}
		return string(data), nil
	case strings.TrimSpace(text) != "":
		return text, nil
	default:
		return "", errors.New("a patient profile is required (--profile FILE or --text TEXT)")
	}
}

func printResponse(w io.Writer, r *pipeline.Response) {
	fmt.Fprintf(w, "Request %s (%.2fs)\n", r.RequestID, r.ProcessingTime)
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	if r.Cached.Extraction || r.Cached.Enrichment {
		fmt.Fprintf(w, "cache: extraction=%t enrichment=%t\n", r.Cached.Extraction, r.Cached.Enrichment)
	}
	fmt.Fprintf(w, "\nFound %d trials\n", len(r.Trials))
	for i, t := range r.Trials {
		title := "(untitled)"
		if t.Title != nil {
			title = *t.Title
		}
		fmt.Fprintf(w, "%2d. %s  score=%.3f\n    %s\n", i+1, t.NCTID, t.RelevanceScore, title)
		if len(t.Conditions) > 0 {
			fmt.Fprintf(w, "    conditions: %s\n", strings.Join(t.Conditions, ", "))
		}
	}
	if len(r.Results) == 0 {
		return
	}
	s := r.Summary
	fmt.Fprintf(w, "\nCriteria: %d trials, %d with matches, average score %.2f, best %.2f\n",
		s.TotalTrials, s.TrialsWithMatches, s.AverageMatchScore, s.BestMatchScore)
	for _, tr := range r.Results {
		fmt.Fprintf(w, "  %s: %d/%d eligible (%.2f)\n", tr.TrialID, tr.EligibleCriteria, tr.TotalCriteria, tr.MatchScore)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
