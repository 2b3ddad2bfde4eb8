package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/app"
	"github.com/kailas-cloud/trialmatch/internal/usecase/evaluation"
)

func evalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Compare enriched and basic retrieval against relevance judgments",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "topics", Usage: "Path to the topics file (JSON lines of topic_id, profile)", Required: true},
			&cli.StringFlag{Name: "qrels", Usage: "Path to the relevance judgments CSV (topic_id,nct_id[,label])", Required: true},
			&cli.IntFlag{Name: "k", Usage: "Cutoff for precision/recall@k (default from config)"},
			&cli.IntFlag{Name: "workers", Usage: "Topics evaluated concurrently (default from config)"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the JSON report to this file instead of stdout"},
		},
		Action: evalAction,
	}
}

func evalAction(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	topicsFile, err := os.Open(c.String("topics"))
	if err != nil {
		return fmt.Errorf("open topics: %w", err)
	}
	defer topicsFile.Close()
	topics, err := evaluation.LoadTopics(topicsFile)
	if err != nil {
		return fmt.Errorf("load topics: %w", err)
	}

	qrelsFile, err := os.Open(c.String("qrels"))
	if err != nil {
		return fmt.Errorf("open qrels: %w", err)
	}
	defer qrelsFile.Close()
	qrels, err := evaluation.LoadQrels(qrelsFile)
	if err != nil {
		return fmt.Errorf("load qrels: %w", err)
	}

	k := cfg.Evaluation.K
	if c.IsSet("k") {
		k = c.Int("k")
	}
	workers := cfg.Evaluation.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}

	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("Starting evaluation",
		zap.Int("topics", len(topics)),
		zap.Int("k", k),
		zap.Int("workers", workers),
	)
	report, err := evaluation.New(a.Pipeline, k, workers, logger).Evaluate(c.Context, topics, qrels)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	if err := evaluation.WriteReport(out, report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	cmp := report.Comparison
	logger.Info("Evaluation complete",
		zap.Float64("enriched_f1", cmp["f1@k"].Enriched),
		zap.Float64("basic_f1", cmp["f1@k"].Basic),
		zap.Int("failed_enriched", report.Enriched.Failed),
		zap.Int("failed_basic", report.Basic.Failed),
	)
	return nil
}
