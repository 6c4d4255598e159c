package availability

import (
	"errors"
	"fmt"
)

var ErrMalformedMatrix = errors.New("malformed availability matrix")

// Grid is the candidate layout of an event: date rows and time columns, each
// an id list with a parallel label list.
type Grid struct {
	DateIDs    []string
	DateLabels []string
	TimeIDs    []string
	TimeLabels []string
}

func (g Grid) validate() error {
	if len(g.DateIDs) != len(g.DateLabels) {
		return fmt.Errorf("%w: %d date ids, %d date labels", ErrMalformedMatrix, len(g.DateIDs), len(g.DateLabels))
	}
	if len(g.TimeIDs) != len(g.TimeLabels) {
		return fmt.Errorf("%w: %d time ids, %d time labels", ErrMalformedMatrix, len(g.TimeIDs), len(g.TimeLabels))
	}
	return nil
}

// Matrix is one participant's answer: Available[i][j] reports the cell at
// date row i and time column j.
type Matrix struct {
	Grid
	Available [][]bool
}

// NewMatrix allocates an all-false grid sized to g.
func NewMatrix(g Grid) Matrix {
	avail := make([][]bool, len(g.DateIDs))
	for i := range avail {
		avail[i] = make([]bool, len(g.TimeIDs))
	}
	return Matrix{Grid: g, Available: avail}
}

// Validate enforces the parallel-array and grid-shape invariants. Nothing is
// padded or truncated.
func (m Matrix) Validate() error {
	if err := m.Grid.validate(); err != nil {
		return err
	}
	if len(m.Available) != len(m.DateIDs) {
		return fmt.Errorf("%w: %d rows for %d dates", ErrMalformedMatrix, len(m.Available), len(m.DateIDs))
	}
	for i, row := range m.Available {
		if len(row) != len(m.TimeIDs) {
			return fmt.Errorf("%w: row %d has %d cells for %d times", ErrMalformedMatrix, i, len(row), len(m.TimeIDs))
		}
	}
	return nil
}

func (m Matrix) Selected() int {
	n := 0
	for _, row := range m.Available {
		for _, v := range row {
			if v {
				n++
			}
		}
	}
	return n
}
