// Package vector holds the row-aligned embedding matrix and similarity search over it.
package vector

import (
	"fmt"
	"sort"
)

// Matrix is an immutable rows x dim matrix of float32 stored row-major.
// Row i holds the embedding of clause i.
type Matrix struct {
	rows int
	dim  int
	data []float32
}

// Hit is one similarity result: the row index and its inner product with the query.
type Hit struct {
	Index int
	Score float64
}

// NewMatrix copies vectors into a Matrix. All vectors must have length dim.
// A nil or empty vectors slice yields a zero-row matrix.
func NewMatrix(dim int, vectors [][]float32) (*Matrix, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &Matrix{rows: len(vectors), dim: dim, data: data}, nil
}

// FromFlat wraps row-major data of shape rows x dim without copying.
func FromFlat(rows, dim int, data []float32) (*Matrix, error) {
	if dim <= 0 || rows < 0 {
		return nil, fmt.Errorf("invalid shape %dx%d", rows, dim)
	}
	if len(data) != rows*dim {
		return nil, fmt.Errorf("data length %d does not match shape %dx%d", len(data), rows, dim)
	}
	return &Matrix{rows: rows, dim: dim, data: data}, nil
}

// Rows returns the number of rows. A nil Matrix has zero rows.
func (m *Matrix) Rows() int {
	if m == nil {
		return 0
	}
	return m.rows
}

// Dim returns the vector dimension.
func (m *Matrix) Dim() int {
	if m == nil {
		return 0
	}
	return m.dim
}

// Row returns row i. The returned slice aliases the matrix and must not be modified.
func (m *Matrix) Row(i int) []float32 {
	return m.data[i*m.dim : (i+1)*m.dim]
}

// Data returns the row-major backing slice. It must not be modified.
func (m *Matrix) Data() []float32 {
	if m == nil {
		return nil
	}
	return m.data
}

// Scores returns the inner product of query with every row.
func (m *Matrix) Scores(query []float32) ([]float64, error) {
	if len(query) != m.Dim() {
		return nil, fmt.Errorf("query dimension %d does not match matrix dimension %d", len(query), m.Dim())
	}
	scores := make([]float64, m.Rows())
	for i := range scores {
		scores[i] = InnerProduct(query, m.Row(i))
	}
	return scores, nil
}

// TopK returns the k rows with the largest inner product, best first.
// All rows are scored and fully sorted; equal scores keep row order.
func (m *Matrix) TopK(query []float32, k int) ([]Hit, error) {
	scores, err := m.Scores(query)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(scores))
	for i, s := range scores {
		hits[i] = Hit{Index: i, Score: s}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k >= 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}
