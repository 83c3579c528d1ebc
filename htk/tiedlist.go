package htk

import (
	"bufio"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/ieee0824/kaldi2htk/acoustic"
)

// Cluster is one physical HMM and every logical context tied to it.
// Contexts[0] names the physical model.
type Cluster struct {
	Contexts []acoustic.Context
}

// TiedEntry is one line of a tied list. Alias is empty for a physical model.
type TiedEntry struct {
	Alias     acoustic.Triphone
	Canonical acoustic.Triphone
}

// TiedList computes the tied-list lines for clusters. A physical model name
// is listed once; a later cluster with the same canonical name ties its
// contexts to the first one. Duplicate alias pairs and aliases that name
// their own canonical model are dropped.
func TiedList(clusters []Cluster, namer acoustic.Namer) []TiedEntry {
	type pair struct{ alias, canonical acoustic.Triphone }
	written := make(map[pair]bool)
	physical := make(map[acoustic.Triphone]bool)
	var out []TiedEntry

	for _, c := range clusters {
		if len(c.Contexts) == 0 {
			continue
		}
		canonical := namer.Name(c.Contexts[0])
		if !physical[canonical] {
			physical[canonical] = true
			out = append(out, TiedEntry{Canonical: canonical})
		}
		for _, ctx := range c.Contexts[1:] {
			alias := namer.Name(ctx)
			p := pair{alias, canonical}
			if alias == canonical || written[p] {
				continue
			}
			written[p] = true
			out = append(out, TiedEntry{Alias: alias, Canonical: canonical})
		}
	}
	return out
}

// WriteTiedList writes entries in HTK tied-list form: a physical model on
// its own line, a logical model as "alias canonical".
func WriteTiedList(w io.Writer, entries []TiedEntry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if e.Alias == "" {
			fmt.Fprintln(bw, e.Canonical)
		} else {
			fmt.Fprintln(bw, e.Alias, e.Canonical)
		}
	}
	return errors.Wrap(bw.Flush(), "write tied list")
}
