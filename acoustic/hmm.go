package acoustic

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// TransitionMatrix is a named HTK transition matrix. Row and column 0 are the
// non-emitting entry state, the last ones the non-emitting exit state.
type TransitionMatrix struct {
	Name string
	P    *mat.Dense
}

// NewLeftToRight creates the (n+2)x(n+2) matrix for n emitting states.
// Only the entry transition into the first emitting state is set.
func NewLeftToRight(name string, n int) *TransitionMatrix {
	size := n + 2
	p := mat.NewDense(size, size, nil)
	p.Set(0, 1, 1.0)
	return &TransitionMatrix{Name: name, P: p}
}

// TransitionName returns the macro name "T_<pdf>_<pdf>..." for a pdf sequence.
func TransitionName(pdfs []int) string {
	parts := make([]string, len(pdfs))
	for i, p := range pdfs {
		parts[i] = strconv.Itoa(p)
	}
	return "T_" + strings.Join(parts, "_")
}

// Set stores the probability of leaving emitting state i (0-based) by
// transition b: 0 for the self-loop, 1 for the next state.
func (t *TransitionMatrix) Set(i, b int, p float64) {
	t.P.Set(i+1, i+1+b, p)
}

// At returns the probability from padded state i to padded state j.
func (t *TransitionMatrix) At(i, j int) float64 {
	return t.P.At(i, j)
}

// Size returns the number of states including entry and exit.
func (t *TransitionMatrix) Size() int {
	r, _ := t.P.Dims()
	return r
}

// HMM is a left-to-right model whose emitting states are shared GMM states.
type HMM struct {
	Name   Triphone
	States []int // pdf id per emitting state
	Trans  *TransitionMatrix
}

// NumStates returns the state count including the entry and exit states.
func (h *HMM) NumStates() int {
	return len(h.States) + 2
}

// StateName returns the macro name of a shared GMM state.
func StateName(pdf int) string {
	return fmt.Sprintf("state_%d", pdf)
}
