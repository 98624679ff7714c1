package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrDatasetNotFound is returned when a dataset file does not exist.
var ErrDatasetNotFound = errors.New("dataset not found")

// Split is a feature matrix paired with its labels. Y has one column of
// class labels, or one column per class when one-hot encoded.
type Split struct {
	X *mat.Dense
	Y *mat.Dense
}

// Rows returns the number of samples in the split.
func (s *Split) Rows() int {
	r, _ := s.X.Dims()
	return r
}

// Features returns the number of feature columns.
func (s *Split) Features() int {
	_, c := s.X.Dims()
	return c
}

// Paths returns the train and test file locations for a dataset id.
func Paths(root, id string) (train, test string) {
	dir := filepath.Join(root, "data", id)
	return filepath.Join(dir, "train.csv"), filepath.Join(dir, "test.csv")
}

// LoadCSV reads a comma separated file of numbers into a dense matrix.
func LoadCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	m, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return m, nil
}

// ReadCSV parses CSV records from r into a dense matrix.
func ReadCSV(r io.Reader) (*mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.TrimLeadingSpace = true

	var (
		data []float64
		cols int
		rows int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			cols = len(record)
		}
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d, column %d: %w", rows+1, j+1, err)
			}
			data = append(data, v)
		}
		rows++
	}

	if rows == 0 {
		return nil, errors.New("no rows")
	}
	if cols < 2 {
		return nil, fmt.Errorf("need at least one feature and one label column, got %d column(s)", cols)
	}
	return mat.NewDense(rows, cols, data), nil
}

// Shuffle permutes the rows of m in place.
func Shuffle(m *mat.Dense, rng *rand.Rand) {
	rows, cols := m.Dims()
	tmp := make([]float64, cols)
	for i := rows - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		if i == j {
			continue
		}
		mat.Row(tmp, i, m)
		m.SetRow(i, m.RawRowView(j))
		m.SetRow(j, tmp)
	}
}

// SplitLabels separates the trailing label column from the features. With
// oneHot, labels are expanded to max(label)+1 indicator columns.
func SplitLabels(m *mat.Dense, oneHot bool) (*Split, error) {
	rows, cols := m.Dims()
	if cols < 2 {
		return nil, fmt.Errorf("need at least one feature and one label column, got %d column(s)", cols)
	}

	x := mat.DenseCopyOf(m.Slice(0, rows, 0, cols-1))
	labels := mat.Col(nil, cols-1, m)

	if !oneHot {
		return &Split{X: x, Y: mat.NewDense(rows, 1, labels)}, nil
	}

	y, err := OneHot(labels)
	if err != nil {
		return nil, err
	}
	return &Split{X: x, Y: y}, nil
}

// OneHot encodes integral, non-negative class labels as indicator rows.
func OneHot(labels []float64) (*mat.Dense, error) {
	if len(labels) == 0 {
		return nil, errors.New("no labels to encode")
	}
	for i, l := range labels {
		if l < 0 || l != math.Trunc(l) {
			return nil, fmt.Errorf("label %v at row %d is not a non-negative integer", l, i+1)
		}
	}

	classes := int(floats.Max(labels)) + 1
	y := mat.NewDense(len(labels), classes, nil)
	for i, l := range labels {
		y.Set(i, int(l), 1)
	}
	return y, nil
}

// Labels returns one class label per row of y. One-hot rows are decoded to
// the index of their largest entry.
func Labels(y *mat.Dense) []float64 {
	rows, cols := y.Dims()
	if cols == 1 {
		return mat.Col(nil, 0, y)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = float64(floats.MaxIdx(y.RawRowView(i)))
	}
	return out
}
