package config

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const sampleConfig = `{
  "dataset": {"id": "iris", "instances": 0, "features": 0},
  "model": {
    "type": "Sequential",
    "architecture": {"Dense": [32, 3], "Activation": ["relu", "softmax"]},
    "hyperparameters": {
      "build": {"optimizer": "adam"},
      "compile": {"loss": "categorical_crossentropy", "metrics": ["accuracy"]},
      "fit": {"epochs": 10, "batch_size": 16},
      "evaluate": {}
    }
  },
  "results": {},
  "notes": {"owner": "research", "tags": ["baseline"]}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, "cfg.json", sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "iris", cfg.Dataset.ID)
	assert.Equal(t, "Sequential", cfg.Model.Type)
	assert.Equal(t, []int{32, 3}, cfg.Model.Architecture.Dense)
	assert.Equal(t, []string{"relu", "softmax"}, cfg.Model.Architecture.Activation)

	epochs, err := cfg.Phase(PhaseFit).Int("epochs", 0)
	require.NoError(t, err)
	assert.Equal(t, 10, epochs)
	assert.NotNil(t, cfg.Results)
	assert.Empty(t, cfg.Phase("missing"))
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		content *string
		wantErr error
	}{
		{name: "missing file", content: nil, wantErr: ErrConfigNotFound},
		{name: "invalid json", content: ptr(`{"dataset": `), wantErr: ErrMalformedConfig},
		{name: "root is array", content: ptr(`[1, 2]`), wantErr: ErrMalformedConfig},
		{name: "dense not numeric", content: ptr(`{"model": {"architecture": {"Dense": ["wide"]}}}`), wantErr: ErrMalformedConfig},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "cfg.json")
			if tc.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tc.content), 0644))
			}
			_, err := Load(path)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSave_PreservesUnknownKeysAndSortsOutput(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "cfg.json", sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Dataset.Instances = 120
	cfg.Dataset.Features = 4
	cfg.Results["time"] = 1.5
	cfg.Results["acc"] = 0.9
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(120), gjson.GetBytes(raw, "dataset.instances").Int())
	assert.Equal(t, int64(4), gjson.GetBytes(raw, "dataset.features").Int())
	assert.Equal(t, 1.5, gjson.GetBytes(raw, "results.time").Float())
	assert.Equal(t, "research", gjson.GetBytes(raw, "notes.owner").String())
	assert.Equal(t, "adam", gjson.GetBytes(raw, "model.hyperparameters.build.optimizer").String())

	// Sorted keys: "dataset" precedes "model", which precedes "notes" and "results".
	var order []string
	gjson.ParseBytes(raw).ForEach(func(key, _ gjson.Result) bool {
		order = append(order, key.String())
		return true
	})
	if diff := cmp.Diff([]string{"dataset", "model", "notes", "results"}, order); diff != "" {
		t.Errorf("top-level key order mismatch (-want +got):\n%s", diff)
	}

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, reloaded.Results["acc"])
}

func TestSave_WritesNonFiniteResults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "cfg.json", sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Results["loss"] = math.NaN()
	cfg.Results["mse"] = math.Inf(1)
	cfg.Results["low"] = math.Inf(-1)
	cfg.Results["acc"] = 0.5
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(raw))

	assert.Equal(t, "NaN", gjson.GetBytes(raw, "results.loss").String())
	assert.Equal(t, "Infinity", gjson.GetBytes(raw, "results.mse").String())
	assert.Equal(t, "-Infinity", gjson.GetBytes(raw, "results.low").String())
	assert.Equal(t, 0.5, gjson.GetBytes(raw, "results.acc").Float())
	assert.True(t, math.IsNaN(cfg.Results["loss"].(float64)), "Save must not rewrite the caller's results")
}

func TestSave_PutsArrayElementsOnTheirOwnLines(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "cfg.json", sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\"Dense\": [\n        32,\n        3\n      ]")
}

func TestParams(t *testing.T) {
	t.Parallel()

	var p Params
	require.NoError(t, json.Unmarshal([]byte(`{
		"C": 2.5, "epochs": 20, "half": 0.5, "kernel": "rbf",
		"shuffle": false, "metrics": ["accuracy", "mse"], "metric": "mae", "nothing": null
	}`), &p))

	f, err := p.Float("C", 1)
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	i, err := p.Int("epochs", 1)
	require.NoError(t, err)
	assert.Equal(t, 20, i)

	_, err = p.Int("half", 1)
	require.ErrorIs(t, err, ErrMalformedConfig)

	s, err := p.String("kernel", "linear")
	require.NoError(t, err)
	assert.Equal(t, "rbf", s)

	_, err = p.String("C", "")
	require.ErrorIs(t, err, ErrMalformedConfig)

	b, err := p.Bool("shuffle", true)
	require.NoError(t, err)
	assert.False(t, b)

	list, err := p.Strings("metrics", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"accuracy", "mse"}, list)

	list, err = p.Strings("metric", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mae"}, list)

	d, err := p.Float("nothing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, d)
	assert.False(t, p.Has("nothing"))
}

func TestParams_Merge(t *testing.T) {
	t.Parallel()

	base := Params{"optimizer": "sgd", "loss": "mse"}
	merged := base.Merge(Params{"optimizer": "adam", "loss": nil})

	assert.Equal(t, Params{"optimizer": "adam", "loss": "mse"}, merged)
	assert.Equal(t, "sgd", base["optimizer"], "Merge must not modify the receiver")
}

func TestLoadEncoding(t *testing.T) {
	t.Parallel()

	enc, err := LoadEncoding(writeFile(t, "encoding.json", `{"optimizer": ["adam", "sgd"], "loss": ["mse"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"adam", "sgd"}, enc.Optimizers)

	_, err = LoadEncoding(writeFile(t, "encoding.json", `{"loss": ["mse"]}`))
	require.ErrorIs(t, err, ErrMalformedConfig)

	_, err = LoadEncoding(writeFile(t, "encoding.json", `{"optimizer": ["adam", 3]}`))
	require.ErrorIs(t, err, ErrMalformedConfig)

	_, err = LoadEncoding(filepath.Join(t.TempDir(), "encoding.json"))
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func ptr(s string) *string { return &s }
