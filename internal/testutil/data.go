package testutil

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Clusters returns 27 points in three well separated square clusters
// centred on (0,0), (10,10) and (0,10), labelled 0, 1 and 2.
func Clusters() (x, y *mat.Dense) {
	centers := [][2]float64{{0, 0}, {10, 10}, {0, 10}}
	var xs, ys []float64
	for label, c := range centers {
		for dx := -1.0; dx <= 1; dx++ {
			for dy := -1.0; dy <= 1; dy++ {
				xs = append(xs, c[0]+dx, c[1]+dy)
				ys = append(ys, float64(label))
			}
		}
	}
	return mat.NewDense(len(ys), 2, xs), mat.NewDense(len(ys), 1, ys)
}

// ClusterProbes returns one unseen point near each cluster centre with the
// matching labels.
func ClusterProbes() (x, y *mat.Dense) {
	return mat.NewDense(3, 2, []float64{0.5, -0.5, 9.5, 10.5, 0.5, 9.5}),
		mat.NewDense(3, 1, []float64{0, 1, 2})
}

// Counts returns 18 rows of non-negative count features over three
// classes, where class c concentrates its mass on feature c.
func Counts() (x, y *mat.Dense) {
	var xs, ys []float64
	for c := 0; c < 3; c++ {
		for r := 0; r < 6; r++ {
			row := make([]float64, 3)
			row[c] = float64(6 - r%3)
			row[(c+1)%3] = float64(r % 2)
			row[(c+2)%3] = float64((r / 2) % 2)
			xs = append(xs, row...)
			ys = append(ys, float64(c))
		}
	}
	return mat.NewDense(len(ys), 3, xs), mat.NewDense(len(ys), 1, ys)
}

// RawScale returns 40 rows of two unscaled features running between 100
// and 880 in opposite directions, with alternating 0 and 1 labels.
func RawScale() (x, y *mat.Dense) {
	var xs, ys []float64
	for i := 0; i < 40; i++ {
		xs = append(xs, 100+20*float64(i), 880-20*float64(i))
		ys = append(ys, float64(i%2))
	}
	return mat.NewDense(len(ys), 2, xs), mat.NewDense(len(ys), 1, ys)
}

// CSV renders features and a label column as the comma separated layout
// datasets are stored in.
func CSV(x, y *mat.Dense) string {
	rows, cols := x.Dims()
	var sb strings.Builder
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			sb.WriteString(strconv.FormatFloat(x.At(i, j), 'g', -1, 64))
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(y.At(i, 0), 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return sb.String()
}
