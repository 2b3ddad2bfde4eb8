package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/trialmatch/internal/app"
	"github.com/kailas-cloud/trialmatch/internal/db"
	trialrepo "github.com/kailas-cloud/trialmatch/internal/repository/trial"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Manage the trial search index",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create the full-text index over trial hashes",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "recreate", Usage: "Drop an existing index first (documents are kept)"},
				},
				Action: indexCreate,
			},
			{
				Name:   "info",
				Usage:  "Show whether the index exists and how many trials it holds",
				Action: indexInfo,
			},
		},
	}
}

func indexCreate(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := app.OpenStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := trialrepo.New(store, cfg.Search.Index)
	err = repo.CreateIndex(c.Context, c.Bool("recreate"))
	if errors.Is(err, db.ErrIndexExists) {
		fmt.Fprintf(c.App.Writer, "Index %q already exists (use --recreate to rebuild)\n", repo.Index())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Created index %q\n", repo.Index())
	return nil
}

func indexInfo(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := app.OpenStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := trialrepo.New(store, cfg.Search.Index)
	exists, err := repo.IndexExists(c.Context)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Fprintf(c.App.Writer, "Index %q does not exist\n", repo.Index())
		return nil
	}
	n, err := repo.Count(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Index %q: %d trials\n", repo.Index(), n)
	return nil
}
