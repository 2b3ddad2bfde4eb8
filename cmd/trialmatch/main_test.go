package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/trialmatch/internal/domain/criteria"
	"github.com/kailas-cloud/trialmatch/internal/usecase/pipeline"
)

func TestNewApp_Help(t *testing.T) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out

	require.NoError(t, app.Run([]string{"trialmatch", "--help"}))
	for _, cmd := range []string{"run", "cache", "index", "ingest", "eval"} {
		assert.Contains(t, out.String(), cmd)
	}
}

func TestReadTrials(t *testing.T) {
	in := strings.NewReader(`{"nct_id":"NCT001","brief_title":"A","conditions":["asthma"],"eligibility_criteria":"Inclusion: adults"}
{"nct_id":"NCT002","brief_title":"B"}`)

	recs, err := readTrials(in)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "NCT001", recs[0].NCTID)
	assert.Equal(t, []string{"asthma"}, recs[0].Conditions)
	assert.Equal(t, "Inclusion: adults", recs[0].EligibilityCriteria)
	assert.Empty(t, recs[1].EligibilityCriteria)
}

func TestReadTrials_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: "no trial records"},
		{name: "missing id", input: `{"brief_title":"x"}`, want: "record 1"},
		{name: "bad json", input: `{"nct_id":"NCT1"} {`, want: "record 2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readTrials(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestReadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.txt")
	require.NoError(t, os.WriteFile(path, []byte("58-year-old with COPD"), 0o600))

	got, err := readProfile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "58-year-old with COPD", got)

	got, err = readProfile("", "inline text")
	require.NoError(t, err)
	assert.Equal(t, "inline text", got)

	_, err = readProfile(path, "inline text")
	require.Error(t, err)

	_, err = readProfile("", "   ")
	require.Error(t, err)
}

func TestRunConfig_FlagsOverrideBase(t *testing.T) {
	var got pipeline.Config
	cmd := runCommand()
	cmd.Action = func(c *cli.Context) error {
		got = runConfig(c, pipeline.DefaultConfig())
		return nil
	}
	app := &cli.App{Commands: []*cli.Command{cmd}}

	err := app.Run([]string{"trialmatch", "run",
		"--max-trials", "3", "--no-enrich", "--no-cache", "--match-criteria", "--mode", "whole"})
	require.NoError(t, err)

	assert.Equal(t, 3, got.MaxTrials)
	assert.Equal(t, pipeline.DefaultConfig().SearchSize, got.SearchSize)
	assert.False(t, got.UseEnrichedKeywords)
	assert.False(t, got.UseCache)
	assert.True(t, got.MatchCriteria)
	assert.Equal(t, criteria.Whole, got.ClassificationMode)
	assert.False(t, got.SkipMasking)
}
