// Package sweep expands a configuration template across a Cartesian grid
// of hyperparameter values, writing one configuration file per
// combination.
package sweep

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Axis is one swept dimension. Path is a dotted JSON path into the
// template; numeric segments index arrays.
type Axis struct {
	Name   string
	Path   string
	Values []cty.Value
}

// Grid is an ordered list of axes. The first axis varies slowest.
type Grid struct {
	Axes []Axis
}

// Size returns the number of combinations in the grid.
func (g *Grid) Size() int {
	if len(g.Axes) == 0 {
		return 0
	}
	n := 1
	for _, a := range g.Axes {
		n *= len(a.Values)
	}
	return n
}

// Paths of the fields the default grid sweeps.
const (
	ActivationPath = "model.architecture.Activation.0"
	OptimizerPath  = "model.hyperparameters.build.optimizer"
	WidthPath      = "model.architecture.Dense.0"
	EpochsPath     = "model.hyperparameters.fit.epochs"
	BatchSizePath  = "model.hyperparameters.fit.batch_size"
)

// DefaultGrid returns the built-in grid: activation, optimizer, first
// layer width, epochs and batch size, outermost first. Optimizers come
// from the encoding table.
func DefaultGrid(enc *config.Encoding) *Grid {
	optimizers := make([]cty.Value, len(enc.Optimizers))
	for i, name := range enc.Optimizers {
		optimizers[i] = cty.StringVal(name)
	}
	return &Grid{Axes: []Axis{
		{Name: "activation", Path: ActivationPath, Values: stringVals("relu", "sigmoid", "hard_sigmoid", "tanh")},
		{Name: "optimizer", Path: OptimizerPath, Values: optimizers},
		{Name: "width", Path: WidthPath, Values: intVals(32, 64, 128, 256)},
		{Name: "epochs", Path: EpochsPath, Values: intVals(10, 20, 50, 100)},
		{Name: "batch_size", Path: BatchSizePath, Values: intVals(16, 32, 64, 128)},
	}}
}

func stringVals(vals ...string) []cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.StringVal(v)
	}
	return out
}

func intVals(vals ...int64) []cty.Value {
	out := make([]cty.Value, len(vals))
	for i, v := range vals {
		out[i] = cty.NumberIntVal(v)
	}
	return out
}

// hclGridFile is the top-level structure of a sweep file.
type hclGridFile struct {
	Axes []*hclAxis `hcl:"axis,block"`
}

type hclAxis struct {
	Name   string    `hcl:"name,label"`
	Path   string    `hcl:"path"`
	Values cty.Value `hcl:"values"`
}

// LoadGrid reads a sweep file. Axes are taken in the order they are
// declared. The encoding table is available to expressions as the
// "encoding" variable, so a file may write values = encoding.optimizer.
func LoadGrid(ctx context.Context, path string, enc *config.Encoding) (*Grid, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading sweep grid.", "path", path)

	evalCtx, err := newEvalContext(enc)
	if err != nil {
		return nil, err
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclGridFile
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &parsed)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	grid := &Grid{}
	seen := make(map[string]string)
	for _, a := range parsed.Axes {
		if prev, dup := seen[a.Path]; dup {
			return nil, fmt.Errorf("axes %q and %q both sweep %s", prev, a.Name, a.Path)
		}
		seen[a.Path] = a.Name

		values, err := axisValues(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		grid.Axes = append(grid.Axes, Axis{Name: a.Name, Path: a.Path, Values: values})
	}
	if len(grid.Axes) == 0 {
		return nil, fmt.Errorf("%s declares no axis blocks", path)
	}

	logger.Debug("Sweep grid loaded.", "axes", len(grid.Axes), "combinations", grid.Size())
	return grid, nil
}

func newEvalContext(enc *config.Encoding) (*hcl.EvalContext, error) {
	vars := map[string]cty.Value{}
	if enc != nil && enc.Raw() != nil {
		ty, err := ctyjson.ImpliedType(enc.Raw())
		if err != nil {
			return nil, fmt.Errorf("failed to type encoding table: %w", err)
		}
		val, err := ctyjson.Unmarshal(enc.Raw(), ty)
		if err != nil {
			return nil, fmt.Errorf("failed to convert encoding table: %w", err)
		}
		vars["encoding"] = val
	}
	return &hcl.EvalContext{Variables: vars}, nil
}

func axisValues(a *hclAxis) ([]cty.Value, error) {
	v := a.Values
	if v.IsNull() || !v.IsWhollyKnown() {
		return nil, fmt.Errorf("axis %q: values must be known and non-null", a.Name)
	}
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return nil, fmt.Errorf("axis %q: values must be a list, got %s", a.Name, ty.FriendlyName())
	}

	var out []cty.Value
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			return nil, fmt.Errorf("axis %q: value %d is null", a.Name, len(out))
		}
		out = append(out, elem)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("axis %q has no values", a.Name)
	}
	return out, nil
}
