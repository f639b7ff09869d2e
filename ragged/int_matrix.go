package ragged

// IntMatrix is the integer counterpart of FloatMatrix. Observation
// series, hidden state sequences and transition/auxiliary count tables
// share this representation.
type IntMatrix struct {
	rows [][]int
}

// NewIntMatrix creates an empty matrix with no rows.
func NewIntMatrix() *IntMatrix {
	return &IntMatrix{}
}

// NewIntMatrixShape creates an r x c matrix of zeros.
func NewIntMatrixShape(r, c int) *IntMatrix {
	if r < 0 || c < 0 {
		panic(ErrBadShape)
	}
	rows := make([][]int, r)
	for i := range rows {
		rows[i] = make([]int, c)
	}
	return &IntMatrix{rows: rows}
}

// NewIntMatrixSizes creates a matrix whose i-th row has sizes[i] zeros.
func NewIntMatrixSizes(sizes []int) *IntMatrix {
	rows := make([][]int, len(sizes))
	for i, n := range sizes {
		if n < 0 {
			panic(ErrBadShape)
		}
		rows[i] = make([]int, n)
	}
	return &IntMatrix{rows: rows}
}

// Rows returns the number of rows.
func (m *IntMatrix) Rows() int {
	return len(m.rows)
}

// Row returns the i-th row for in-place mutation.
func (m *IntMatrix) Row(i int) []int {
	if i < 0 || i >= len(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	return m.rows[i]
}

// Append adds row as a new last row.
func (m *IntMatrix) Append(row []int) {
	m.rows = append(m.rows, row)
}

// Push extends row i by one element.
func (m *IntMatrix) Push(i int, v int) {
	if i < 0 || i >= len(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	m.rows[i] = append(m.rows[i], v)
}

// Sizes returns the length of every row.
func (m *IntMatrix) Sizes() []int {
	sizes := make([]int, len(m.rows))
	for i, row := range m.rows {
		sizes[i] = len(row)
	}
	return sizes
}

// RowSum returns the sum of the elements of row i.
func (m *IntMatrix) RowSum(i int) int {
	if i < 0 || i >= len(m.rows) {
		panic(ErrIndexOutOfRange)
	}
	sum := 0
	for _, v := range m.rows[i] {
		sum += v
	}
	return sum
}
