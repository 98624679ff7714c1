package sweep

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

const template = `{
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
  "results": {}
}`

func encoding(t *testing.T, optimizers ...string) *config.Encoding {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"optimizer": optimizers})
	require.NoError(t, err)
	enc, err := config.ParseEncoding(raw)
	require.NoError(t, err)
	return enc
}

func readGenerated(t *testing.T, root string, n int) []byte {
	t.Helper()
	raw, err := os.ReadFile(OutputPath(root, "iris", n))
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(raw))
	return raw
}

func TestDefaultGridSize(t *testing.T) {
	t.Parallel()

	grid := DefaultGrid(encoding(t, "adam", "sgd", "rmsprop"))
	assert.Equal(t, 4*3*4*4*4, grid.Size())
	assert.Equal(t, 0, (&Grid{}).Size())
}

func TestGenerateWritesEveryCombination(t *testing.T) {
	t.Parallel()
	root := testutil.NewProject(t, map[string]string{"config/master/iris.json": template})

	gen := &Generator{Root: root, Grid: DefaultGrid(encoding(t, "adam", "sgd"))}
	n, err := gen.Generate(context.Background(), "iris")
	require.NoError(t, err)
	assert.Equal(t, 512, n)

	entries, err := os.ReadDir(filepath.Join(root, "config", "generated"))
	require.NoError(t, err)
	assert.Len(t, entries, 512)
	_, err = os.Stat(OutputPath(root, "iris", 513))
	assert.ErrorIs(t, err, os.ErrNotExist)

	testCases := []struct {
		n          int
		activation string
		optimizer  string
		width      int64
		epochs     int64
		batchSize  int64
	}{
		{n: 1, activation: "relu", optimizer: "adam", width: 32, epochs: 10, batchSize: 16},
		{n: 2, activation: "relu", optimizer: "adam", width: 32, epochs: 10, batchSize: 32},
		{n: 5, activation: "relu", optimizer: "adam", width: 32, epochs: 20, batchSize: 16},
		{n: 65, activation: "relu", optimizer: "sgd", width: 32, epochs: 10, batchSize: 16},
		{n: 129, activation: "sigmoid", optimizer: "adam", width: 32, epochs: 10, batchSize: 16},
		{n: 512, activation: "tanh", optimizer: "sgd", width: 256, epochs: 100, batchSize: 128},
	}
	for _, tc := range testCases {
		raw := readGenerated(t, root, tc.n)
		assert.Equal(t, tc.activation, gjson.GetBytes(raw, ActivationPath).String(), "file %d", tc.n)
		assert.Equal(t, tc.optimizer, gjson.GetBytes(raw, OptimizerPath).String(), "file %d", tc.n)
		assert.Equal(t, tc.width, gjson.GetBytes(raw, WidthPath).Int(), "file %d", tc.n)
		assert.Equal(t, tc.epochs, gjson.GetBytes(raw, EpochsPath).Int(), "file %d", tc.n)
		assert.Equal(t, tc.batchSize, gjson.GetBytes(raw, BatchSizePath).Int(), "file %d", tc.n)
	}
}

func TestGenerateRejectsEmptyOptimizerList(t *testing.T) {
	t.Parallel()
	root := testutil.NewProject(t, map[string]string{"config/master/iris.json": template})

	enc, err := config.ParseEncoding([]byte(`{"optimizer": []}`))
	require.NoError(t, err)
	grid := DefaultGrid(enc)
	assert.Equal(t, 0, grid.Size())

	n, err := (&Generator{Root: root, Grid: grid}).Generate(context.Background(), "iris")
	require.ErrorContains(t, err, "sweep grid for iris is empty")
	assert.Zero(t, n)
	assert.NoDirExists(t, filepath.Join(root, "config", "generated"))
}

func TestGeneratedFilesDifferOnlyAtAxisPaths(t *testing.T) {
	t.Parallel()
	root := testutil.NewProject(t, map[string]string{"config/master/iris.json": template})

	grid := DefaultGrid(encoding(t, "nadam"))
	_, err := (&Generator{Root: root, Grid: grid}).Generate(context.Background(), "iris")
	require.NoError(t, err)

	var want map[string]any
	require.NoError(t, json.Unmarshal([]byte(template), &want))

	for _, n := range []int{1, 77, 256} {
		raw := readGenerated(t, root, n)
		for _, a := range grid.Axes {
			raw, err = sjson.SetRawBytes(raw, a.Path, []byte(gjson.Get(template, a.Path).Raw))
			require.NoError(t, err)
		}
		var got map[string]any
		require.NoError(t, json.Unmarshal(raw, &got))
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("file %d differs outside the swept paths (-want +got):\n%s", n, diff)
		}
	}
}

func TestGenerateValidatesTemplate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		template string
		wantErr  error
	}{
		{name: "missing template", wantErr: config.ErrConfigNotFound},
		{name: "invalid json", template: `{"model":`, wantErr: config.ErrMalformedConfig},
		{
			name:     "empty activation list",
			template: `{"model":{"architecture":{"Dense":[32],"Activation":[]},"hyperparameters":{"build":{},"fit":{}}}}`,
			wantErr:  config.ErrMalformedConfig,
		},
		{
			name:     "missing fit phase",
			template: `{"model":{"architecture":{"Dense":[32],"Activation":["relu"]},"hyperparameters":{"build":{}}}}`,
			wantErr:  config.ErrMalformedConfig,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			files := map[string]string{}
			if tc.template != "" {
				files["config/master/iris.json"] = tc.template
			}
			root := testutil.NewProject(t, files)

			n, err := (&Generator{Root: root, Grid: DefaultGrid(encoding(t, "adam"))}).Generate(context.Background(), "iris")
			require.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, n)
		})
	}
}

func TestGenerateAddsMissingKeys(t *testing.T) {
	t.Parallel()
	root := testutil.NewProject(t, map[string]string{
		"config/master/iris.json": `{"model":{"architecture":{"Dense":[8],"Activation":["relu"]},"hyperparameters":{"build":{},"fit":{}}}}`,
	})

	n, err := (&Generator{Root: root, Grid: DefaultGrid(encoding(t, "adam"))}).Generate(context.Background(), "iris")
	require.NoError(t, err)
	assert.Equal(t, 256, n)

	raw := readGenerated(t, root, 1)
	assert.Equal(t, "adam", gjson.GetBytes(raw, OptimizerPath).String())
	assert.Equal(t, int64(16), gjson.GetBytes(raw, BatchSizePath).Int())
}

const hclGrid = `
axis "activation" {
  path   = "model.architecture.Activation.0"
  values = ["relu", "sigmoid", "hard_sigmoid", "tanh"]
}

axis "optimizer" {
  path   = "model.hyperparameters.build.optimizer"
  values = encoding.optimizer
}

axis "width" {
  path   = "model.architecture.Dense.0"
  values = [32, 64, 128, 256]
}

axis "epochs" {
  path   = "model.hyperparameters.fit.epochs"
  values = [10, 20, 50, 100]
}

axis "batch_size" {
  path   = "model.hyperparameters.fit.batch_size"
  values = [16, 32, 64, 128]
}
`

func TestLoadGridMatchesDefault(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	enc := encoding(t, "adam", "sgd")

	gridRoot := testutil.NewProject(t, map[string]string{"sweep.hcl": hclGrid})
	grid, err := LoadGrid(ctx, filepath.Join(gridRoot, "sweep.hcl"), enc)
	require.NoError(t, err)

	def := DefaultGrid(enc)
	require.Len(t, grid.Axes, len(def.Axes))
	for i, a := range grid.Axes {
		assert.Equal(t, def.Axes[i].Name, a.Name)
		assert.Equal(t, def.Axes[i].Path, a.Path)
		require.Len(t, a.Values, len(def.Axes[i].Values))
		for j, v := range a.Values {
			assert.True(t, v.Equals(def.Axes[i].Values[j]).True(), "axis %s value %d", a.Name, j)
		}
	}

	fromHCL := testutil.NewProject(t, map[string]string{"config/master/iris.json": template})
	fromDefault := testutil.NewProject(t, map[string]string{"config/master/iris.json": template})
	_, err = (&Generator{Root: fromHCL, Grid: grid}).Generate(ctx, "iris")
	require.NoError(t, err)
	_, err = (&Generator{Root: fromDefault, Grid: def}).Generate(ctx, "iris")
	require.NoError(t, err)
	for _, n := range []int{1, 200, 512} {
		assert.Equal(t, string(readGenerated(t, fromDefault, n)), string(readGenerated(t, fromHCL, n)), "file %d", n)
	}
}

func TestLoadGridErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "no axes", body: ``, wantErr: "declares no axis blocks"},
		{name: "syntax error", body: `axis "a" {`, wantErr: "failed to parse"},
		{name: "empty values", body: "axis \"a\" {\n path = \"x\"\n values = []\n}\n", wantErr: `axis "a" has no values`},
		{name: "scalar values", body: "axis \"a\" {\n path = \"x\"\n values = 3\n}\n", wantErr: "values must be a list"},
		{name: "unknown variable", body: "axis \"a\" {\n path = \"x\"\n values = nope.optimizer\n}\n", wantErr: "failed to decode"},
		{
			name:    "duplicate path",
			body:    "axis \"a\" {\n path = \"x\"\n values = [1]\n}\naxis \"b\" {\n path = \"x\"\n values = [2]\n}\n",
			wantErr: `axes "a" and "b" both sweep x`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			root := testutil.NewProject(t, map[string]string{"sweep.hcl": tc.body})
			_, err := LoadGrid(context.Background(), filepath.Join(root, "sweep.hcl"), encoding(t, "adam"))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestGenerateHonoursCancellation(t *testing.T) {
	t.Parallel()
	root := testutil.NewProject(t, map[string]string{"config/master/iris.json": template})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	grid := &Grid{Axes: []Axis{{Name: "epochs", Path: EpochsPath, Values: []cty.Value{cty.NumberIntVal(1)}}}}
	n, err := (&Generator{Root: root, Grid: grid}).Generate(ctx, "iris")
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
