package tensor

import "fmt"

// Mat is a dense row-major float32 matrix.
//
// Weights follow the Keras layout: a kernel mapping n inputs to m outputs is
// an n×m matrix, so a row vector is multiplied from the left (see VecMat).
type Mat struct {
	R, C int
	Data []float32
}

// NewMat allocates a zeroed r×c matrix.
func NewMat(r, c int) Mat {
	if r < 0 || c < 0 {
		panic("negative dimension for matrix")
	}
	return Mat{R: r, C: c, Data: make([]float32, r*c)}
}

// NewMatFromData wraps data as an r×c matrix without copying.
func NewMatFromData(r, c int, data []float32) (Mat, error) {
	if r < 0 || c < 0 {
		return Mat{}, fmt.Errorf("negative dimension %dx%d", r, c)
	}
	if r*c != len(data) {
		return Mat{}, fmt.Errorf("data length %d does not match %dx%d", len(data), r, c)
	}
	return Mat{R: r, C: c, Data: data}, nil
}

// Row returns a view of row i.
func (m Mat) Row(i int) []float32 {
	if i < 0 || i >= m.R {
		panic("row index out of range")
	}
	return m.Data[i*m.C : (i+1)*m.C]
}

// Cols returns columns [from, to) as a new matrix.
func (m Mat) Cols(from, to int) Mat {
	if from < 0 || to > m.C || from > to {
		panic("column range out of range")
	}
	out := NewMat(m.R, to-from)
	for i := 0; i < m.R; i++ {
		copy(out.Row(i), m.Data[i*m.C+from:i*m.C+to])
	}
	return out
}

// VecMat sets dst = x·m, where len(x) == m.R and len(dst) == m.C.
func VecMat(dst, x []float32, m Mat) {
	if len(x) != m.R || len(dst) != m.C {
		panic(fmt.Sprintf("VecMat: shape mismatch x=%d m=%dx%d dst=%d", len(x), m.R, m.C, len(dst)))
	}
	clear(dst)
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := m.Data[i*m.C : (i+1)*m.C]
		for j, w := range row {
			dst[j] += xi * w
		}
	}
}

// AddVecMat accumulates dst += x·m.
func AddVecMat(dst, x []float32, m Mat) {
	if len(x) != m.R || len(dst) != m.C {
		panic(fmt.Sprintf("AddVecMat: shape mismatch x=%d m=%dx%d dst=%d", len(x), m.R, m.C, len(dst)))
	}
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := m.Data[i*m.C : (i+1)*m.C]
		for j, w := range row {
			dst[j] += xi * w
		}
	}
}
