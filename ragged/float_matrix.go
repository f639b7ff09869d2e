package ragged

// FloatMatrix is a jagged two-level float64 container: an ordered sequence
// of independently sized rows. The beam sampler stores slice variables,
// transition probabilities and forward probabilities in this shape.
type FloatMatrix struct {
	rows [][]float64
}

// NewFloatMatrix creates an empty matrix with no rows.
func NewFloatMatrix() *FloatMatrix {
	return &FloatMatrix{}
}

// NewFloatMatrixShape creates an r x c matrix of zeros.
func NewFloatMatrixShape(r, c int) *FloatMatrix {
	if r < 0 || c < 0 {
		panic(ErrBadShape)
	}
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
	}
	return &FloatMatrix{rows: rows}
}

// NewFloatMatrixSizes creates a matrix whose i-th row has sizes[i] zeros.
func NewFloatMatrixSizes(sizes []int) *FloatMatrix {
	rows := make([][]float64, len(sizes))
	for i, n := range sizes {
		if n < 0 {
			panic(ErrBadShape)
		}
		rows[i] = make([]float64, n)
	}
	return &FloatMatrix{rows: rows}
}

// Rows returns the number of rows.
func (m *FloatMatrix) Rows() int {
	return len(m.rows)
}

// Row returns the i-th row for in-place mutation.
func (m *FloatMatrix) Row(i int) []float64 {
	if i < 0 || i >= len(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	return m.rows[i]
}

// Append adds row as a new last row.
func (m *FloatMatrix) Append(row []float64) {
	m.rows = append(m.rows, row)
}

// Push extends row i by one element.
func (m *FloatMatrix) Push(i int, v float64) {
	if i < 0 || i >= len(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	m.rows[i] = append(m.rows[i], v)
}

// Sizes returns the length of every row.
func (m *FloatMatrix) Sizes() []int {
	sizes := make([]int, len(m.rows))
	for i, row := range m.rows {
		sizes[i] = len(row)
	}
	return sizes
}

// RowSum returns the sum of the elements of row i.
func (m *FloatMatrix) RowSum(i int) float64 {
	if i < 0 || i >= len(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	sum := 0.0
	for _, v := range m.rows[i] {
		sum += v
	}
	return sum
}
