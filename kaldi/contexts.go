package kaldi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieee0824/kaldi2htk/acoustic"
)

// Topology is one distinct HMM state sequence together with every context
// the decision tree maps onto it. Contexts[0] is the canonical one.
type Topology struct {
	PDFs     []int
	Contexts []acoustic.Context
}

// ContextRow is one row of a context-to-pdf dump.
type ContextRow struct {
	Context  acoustic.Context
	PDFClass int
	PDF      int
}

// ParseContextRow parses "left center right pdf-class pdf" or
// "phone pdf-class pdf".
func ParseContextRow(fields []string) (ContextRow, error) {
	var row ContextRow
	var nums []string
	switch len(fields) {
	case 5:
		row.Context = acoustic.NewTriphone(fields[0], fields[1], fields[2])
		nums = fields[3:]
	case 3:
		row.Context = acoustic.Monophone(fields[0])
		nums = fields[1:]
	default:
		return row, errors.Errorf("expected 3 or 5 fields, got %d", len(fields))
	}
	var err error
	if row.PDFClass, err = strconv.Atoi(nums[0]); err != nil {
		return row, errors.Errorf("pdf-class %q is not an integer", nums[0])
	}
	if row.PDF, err = strconv.Atoi(nums[1]); err != nil {
		return row, errors.Errorf("pdf %q is not an integer", nums[1])
	}
	return row, nil
}

func topologyKey(pdfs []int) string {
	var sb strings.Builder
	for i, p := range pdfs {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", p)
	}
	return sb.String()
}

// topologyBuilder groups consecutive context rows into state sequences.
type topologyBuilder struct {
	index map[string]*Topology
	order []*Topology
	open  []int
	ctx   acoustic.Context
}

func (b *topologyBuilder) close() {
	if len(b.open) == 0 {
		return
	}
	key := topologyKey(b.open)
	if t, ok := b.index[key]; ok {
		t.Contexts = append(t.Contexts, b.ctx)
	} else {
		t = &Topology{PDFs: b.open, Contexts: []acoustic.Context{b.ctx}}
		b.index[key] = t
		b.order = append(b.order, t)
	}
	b.open = nil
}

// LoadTopologies reads a context-to-pdf dump and reconstructs the distinct
// HMM topologies in first-seen order. Rows whose context contains a
// disambiguation symbol or <eps> are skipped. A pdf-class of 0 starts a new
// state sequence.
func LoadTopologies(r io.Reader) ([]*Topology, error) {
	b := &topologyBuilder{index: make(map[string]*Topology)}
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row, err := ParseContextRow(fields)
		if err != nil {
			return nil, formatErr(lineNum, "%v", err)
		}
		if row.Context.HasDisambiguation() || row.Context.HasEpsilon() {
			continue
		}

		if row.PDFClass == 0 {
			b.close()
			b.open = []int{row.PDF}
			b.ctx = row.Context
			continue
		}
		if len(b.open) == 0 {
			return nil, formatErr(lineNum, "pdf-class %d before any sequence start", row.PDFClass)
		}
		b.open = append(b.open, row.PDF)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read context dump")
	}
	b.close()
	return b.order, nil
}
