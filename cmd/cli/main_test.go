package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/vk/hpsweep/internal/cli"
	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/testutil"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when help is requested")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_MissingEncoding(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	err := run(context.Background(), &bytes.Buffer{}, []string{"--root", root, "generate", "iris"})
	require.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestRun_GenerateThenRun(t *testing.T) {
	t.Parallel()

	x, y := testutil.Clusters()
	px, py := testutil.ClusterProbes()
	root := testutil.NewProject(t, map[string]string{
		"encoding.json":            `{"optimizer": ["adam"]}`,
		"data/blobs/train.csv":     testutil.CSV(x, y),
		"data/blobs/test.csv":      testutil.CSV(px, py),
		"sweep.hcl":                "axis \"n\" {\n  path   = \"model.hyperparameters.compile.n_neighbors\"\n  values = [1, 3]\n}\n",
		"config/master/blobs.json": `{"dataset": {"id": "blobs"}, "model": {"type": "KNeighborsClassifier", "hyperparameters": {"compile": {}}}, "results": {}}`,
	})

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, []string{
		"--root", root, "generate", "--grid", filepath.Join(root, "sweep.hcl"), "blobs",
	}))
	assert.Contains(t, out.String(), "Configurations generated.")

	generated := filepath.Join(root, "config", "generated")
	require.NoError(t, run(context.Background(), out, []string{"--root", root, "run", "--workers", "2", generated}))

	for _, n := range []string{"blobs_1.json", "blobs_2.json"} {
		cfg, err := config.Load(filepath.Join(generated, n))
		require.NoError(t, err)
		assert.Equal(t, 1.0, cfg.Results["acc"], n)
		assert.True(t, gjson.GetBytes(cfg.Raw(), "results.time").Exists(), n)
	}
}
