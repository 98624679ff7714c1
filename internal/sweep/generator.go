package sweep

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/ctxlog"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Generator writes the configurations of a grid for a dataset.
type Generator struct {
	Root string
	Grid *Grid
}

// TemplatePath returns the location of the template for a dataset.
func TemplatePath(root, datasetID string) string {
	return filepath.Join(root, "config", "master", datasetID+".json")
}

// OutputPath returns the location of the n-th generated configuration.
func OutputPath(root, datasetID string, n int) string {
	return filepath.Join(root, "config", "generated", fmt.Sprintf("%s_%d.json", datasetID, n))
}

// Generate writes one configuration per grid combination and returns how
// many were written. Files are numbered from 1 in iteration order, the last
// axis varying fastest. Every file starts from the unmodified template.
func (g *Generator) Generate(ctx context.Context, datasetID string) (int, error) {
	logger := ctxlog.FromContext(ctx)

	if g.Grid == nil || g.Grid.Size() == 0 {
		return 0, fmt.Errorf("sweep grid for %s is empty", datasetID)
	}

	template, err := config.ReadDocument(TemplatePath(g.Root, datasetID))
	if err != nil {
		return 0, err
	}
	for _, a := range g.Grid.Axes {
		if err := checkPath(template, a.Path); err != nil {
			return 0, err
		}
	}

	// Values are encoded once; the walk only splices bytes.
	encoded := make([][][]byte, len(g.Grid.Axes))
	for i, a := range g.Grid.Axes {
		for _, v := range a.Values {
			raw, err := ctyjson.Marshal(v, v.Type())
			if err != nil {
				return 0, fmt.Errorf("failed to encode value of axis %q: %w", a.Name, err)
			}
			encoded[i] = append(encoded[i], raw)
		}
	}

	if err := os.MkdirAll(filepath.Dir(OutputPath(g.Root, datasetID, 1)), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	logger.Debug("Generating configurations.", "dataset", datasetID, "combinations", g.Grid.Size())

	idx := make([]int, len(g.Grid.Axes))
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		doc := bytes.Clone(template)
		for i, a := range g.Grid.Axes {
			if doc, err = sjson.SetRawBytes(doc, a.Path, encoded[i][idx[i]]); err != nil {
				return n, fmt.Errorf("failed to set %s: %w", a.Path, err)
			}
		}

		n++
		out := OutputPath(g.Root, datasetID, n)
		if err := os.WriteFile(out, config.Pretty(doc), 0644); err != nil {
			return n - 1, fmt.Errorf("failed to write %s: %w", out, err)
		}

		if !advance(idx, encoded) {
			break
		}
	}
	return n, nil
}

// advance steps the odometer, last axis fastest. It reports false once
// every combination has been visited.
func advance(idx []int, encoded [][][]byte) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(encoded[i]) {
			return true
		}
		idx[i] = 0
	}
	return false
}

// checkPath verifies that path can be overwritten in doc. An array index
// must already exist; an object key only needs its parent object.
func checkPath(doc []byte, path string) error {
	parent, last := "", path
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		parent, last = path[:i], path[i+1:]
	}

	container := gjson.ParseBytes(doc)
	if parent != "" {
		container = gjson.GetBytes(doc, parent)
	}

	if _, err := strconv.Atoi(last); err == nil && container.IsArray() {
		if !gjson.GetBytes(doc, path).Exists() {
			return fmt.Errorf("%w: template has no element at %s", config.ErrMalformedConfig, path)
		}
		return nil
	}
	if !container.IsObject() {
		return fmt.Errorf("%w: template has no object at %s to hold %s", config.ErrMalformedConfig, parentName(parent), path)
	}
	return nil
}

func parentName(p string) string {
	if p == "" {
		return "the root"
	}
	return p
}
