package kaldi

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TransitionKey identifies a transition by pdf, HMM state and transition index.
type TransitionKey struct {
	PDF   int
	State int
	Index int
}

type phoneTransitionKey struct {
	TransitionKey
	Phone int
}

// Collision records a TransitionKey that was seen for more than one phone.
type Collision struct {
	Key    TransitionKey
	Phones [2]int
	Probs  [2]float64
}

// TransitionTable holds the probabilities of a print-transitions dump.
type TransitionTable struct {
	probs      map[TransitionKey]float64
	phoneProbs map[phoneTransitionKey]float64
	owner      map[TransitionKey]int
	collisions []Collision
}

// NewTransitionTable creates an empty table.
func NewTransitionTable() *TransitionTable {
	return &TransitionTable{
		probs:      make(map[TransitionKey]float64),
		phoneProbs: make(map[phoneTransitionKey]float64),
		owner:      make(map[TransitionKey]int),
	}
}

// Add records one transition. A later row for the same key overwrites the
// phone-independent entry.
func (t *TransitionTable) Add(pdf, phone, state, index int, prob float64) {
	key := TransitionKey{PDF: pdf, State: state, Index: index}
	if prev, ok := t.owner[key]; ok && prev != phone {
		t.collisions = append(t.collisions, Collision{
			Key:    key,
			Phones: [2]int{prev, phone},
			Probs:  [2]float64{t.probs[key], prob},
		})
	} else if !ok {
		t.owner[key] = phone
	}
	t.probs[key] = prob
	t.phoneProbs[phoneTransitionKey{TransitionKey: key, Phone: phone}] = prob
}

// LoadTransitions reads a print-transitions dump. Each row holds
// "tid pdf phone hmm-state trans-index trans-state prob [self-loop final]".
func LoadTransitions(r io.Reader) (*TransitionTable, error) {
	t := NewTransitionTable()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 7 {
			return nil, formatErr(lineNum, "expected at least 7 fields, got %d", len(fields))
		}
		var ints [4]int
		for i, f := range fields[1:5] {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, formatErr(lineNum, "field %d %q is not an integer", i+2, f)
			}
			ints[i] = v
		}
		prob, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return nil, formatErr(lineNum, "probability %q is not a number", fields[6])
		}
		t.Add(ints[0], ints[1], ints[2], ints[3], prob)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read transitions")
	}
	return t, nil
}

// Prob returns the probability for (pdf, state, index).
func (t *TransitionTable) Prob(pdf, state, index int) (float64, bool) {
	p, ok := t.probs[TransitionKey{PDF: pdf, State: state, Index: index}]
	return p, ok
}

// ProbForPhone looks up the phone-qualified key first and falls back to Prob.
func (t *TransitionTable) ProbForPhone(pdf, phone, state, index int) (float64, bool) {
	key := phoneTransitionKey{TransitionKey: TransitionKey{PDF: pdf, State: state, Index: index}, Phone: phone}
	if p, ok := t.phoneProbs[key]; ok {
		return p, true
	}
	return t.Prob(pdf, state, index)
}

// Len returns the number of distinct (pdf, state, index) keys.
func (t *TransitionTable) Len() int {
	return len(t.probs)
}

// Collisions returns keys that were shared by different phones, in read order.
func (t *TransitionTable) Collisions() []Collision {
	return t.collisions
}
