package dataset

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	m, err := ReadCSV(strings.NewReader("1,2,0\n3, 4,1\n5,6,2\n"))
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 4.0, m.At(1, 1))
}

func TestReadCSV_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "empty", input: "", wantErr: "no rows"},
		{name: "non numeric", input: "1,2,0\n3,x,1\n", wantErr: "row 2, column 2"},
		{name: "ragged", input: "1,2,0\n3,1\n", wantErr: "wrong number of fields"},
		{name: "label only", input: "1\n2\n", wantErr: "at least one feature"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadCSV(strings.NewReader(tc.input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadCSV_Missing(t *testing.T) {
	t.Parallel()

	train, _ := Paths(t.TempDir(), "iris")
	_, err := LoadCSV(train)
	require.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestLoadCSV(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	train, test := Paths(root, "xor")
	assert.Equal(t, filepath.Join(root, "data", "xor", "train.csv"), train)
	assert.Equal(t, filepath.Join(root, "data", "xor", "test.csv"), test)

	require.NoError(t, os.MkdirAll(filepath.Dir(train), 0755))
	require.NoError(t, os.WriteFile(train, []byte("0,0,0\n0,1,1\n1,0,1\n1,1,0\n"), 0644))

	m, err := LoadCSV(train)
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
}

func TestShuffle_PreservesRows(t *testing.T) {
	t.Parallel()

	data := make([]float64, 0, 40)
	for i := 0; i < 20; i++ {
		data = append(data, float64(i), float64(i*10))
	}
	m := mat.NewDense(20, 2, data)

	Shuffle(m, rand.New(rand.NewPCG(1, 2)))

	rows, cols := m.Dims()
	require.Equal(t, 20, rows)
	require.Equal(t, 2, cols)

	firsts := make([]float64, rows)
	for i := 0; i < rows; i++ {
		// Rows move as a unit.
		assert.Equal(t, m.At(i, 0)*10, m.At(i, 1))
		firsts[i] = m.At(i, 0)
	}
	sort.Float64s(firsts)
	for i, v := range firsts {
		assert.Equal(t, float64(i), v)
	}
}

func TestSplitLabels(t *testing.T) {
	t.Parallel()

	m := mat.NewDense(3, 3, []float64{
		1, 2, 0,
		3, 4, 2,
		5, 6, 1,
	})

	plain, err := SplitLabels(m, false)
	require.NoError(t, err)
	assert.Equal(t, 3, plain.Rows())
	assert.Equal(t, 2, plain.Features())
	assert.Equal(t, []float64{0, 2, 1}, mat.Col(nil, 0, plain.Y))

	hot, err := SplitLabels(m, true)
	require.NoError(t, err)
	_, classes := hot.Y.Dims()
	assert.Equal(t, 3, classes)
	assert.Equal(t, []float64{0, 0, 1}, hot.Y.RawRowView(1))
	assert.Equal(t, []float64{0, 2, 1}, Labels(hot.Y))
	assert.Equal(t, []float64{0, 2, 1}, Labels(plain.Y))
}

func TestOneHot_RejectsNonIntegralLabels(t *testing.T) {
	t.Parallel()

	_, err := OneHot([]float64{0, 1.5})
	require.Error(t, err)

	_, err = OneHot([]float64{-1})
	require.Error(t, err)
}
