package acoustic

import "sort"

// Model is a complete HTK-side acoustic model: shared transition matrices,
// shared GMM states and the HMM definitions that reference them.
type Model struct {
	VecSize     int
	Transitions []*TransitionMatrix // in HMM order
	States      map[int]*GMM        // pdf id -> state
	HMMs        []*HMM
}

// NewModel creates an empty model for vectors of the given size.
func NewModel(vecSize int) *Model {
	return &Model{
		VecSize: vecSize,
		States:  make(map[int]*GMM),
	}
}

// AddHMM appends an HMM and registers its transition matrix.
func (m *Model) AddHMM(h *HMM) {
	m.HMMs = append(m.HMMs, h)
	m.Transitions = append(m.Transitions, h.Trans)
}

// StateIDs returns the pdf ids of all states in ascending order.
func (m *Model) StateIDs() []int {
	ids := make([]int, 0, len(m.States))
	for id := range m.States {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ReferencedStates returns the distinct pdf ids used by the HMMs, ascending.
func (m *Model) ReferencedStates() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, h := range m.HMMs {
		for _, s := range h.States {
			if !seen[s] {
				seen[s] = true
				ids = append(ids, s)
			}
		}
	}
	sort.Ints(ids)
	return ids
}

// NumMixtures returns the total number of Gaussian components.
func (m *Model) NumMixtures() int {
	n := 0
	for _, g := range m.States {
		n += len(g.Components)
	}
	return n
}
