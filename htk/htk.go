// Package htk writes acoustic models in the HTK MMF text layout together
// with the companion tied-state list.
package htk

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieee0824/kaldi2htk/acoustic"
)

// FormatVec renders a vector as %.6e values separated by spaces.
func FormatVec(v []float64) string {
	var sb strings.Builder
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%.6e", x)
	}
	return sb.String()
}

// FormatTransitions renders a transition matrix one row per line.
func FormatTransitions(t *acoustic.TransitionMatrix) string {
	n := t.Size()
	rows := make([]string, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row[j] = t.At(i, j)
		}
		rows[i] = FormatVec(row)
	}
	return strings.Join(rows, "\n")
}

// WriteModel writes m as an HTK MMF: global options, the shared transition
// matrices, the shared GMM states and finally the HMM definitions.
func WriteModel(w io.Writer, m *acoustic.Model) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "~o")
	fmt.Fprintf(bw, "<STREAMINFO> 1 %d\n", m.VecSize)
	fmt.Fprintf(bw, "<VECSIZE> %d<NULLD><USER><DIAGC>\n", m.VecSize)

	for _, t := range m.Transitions {
		fmt.Fprintf(bw, "~t \"%s\"\n", t.Name)
		fmt.Fprintf(bw, "<TRANSP> %d\n", t.Size())
		fmt.Fprintln(bw, FormatTransitions(t))
	}

	for _, id := range m.StateIDs() {
		writeState(bw, id, m.States[id])
	}

	for _, h := range m.HMMs {
		fmt.Fprintf(bw, "~h \"%s\"\n", string(h.Name))
		fmt.Fprintln(bw, "<BEGINHMM>")
		fmt.Fprintf(bw, "<NUMSTATES> %d\n", h.NumStates())
		for i, s := range h.States {
			fmt.Fprintf(bw, "<STATE> %d\n", i+2)
			fmt.Fprintf(bw, "~s \"%s\"\n", acoustic.StateName(s))
		}
		fmt.Fprintf(bw, "~t \"%s\"\n", h.Trans.Name)
		fmt.Fprintln(bw, "<ENDHMM>")
	}

	return errors.Wrap(bw.Flush(), "write HTK model")
}

func writeState(w io.Writer, id int, g *acoustic.GMM) {
	fmt.Fprintf(w, "~s \"%s\"\n", acoustic.StateName(id))
	fmt.Fprintf(w, "<NUMMIXES> %d\n", len(g.Components))
	for i, c := range g.Components {
		fmt.Fprintf(w, "<MIXTURE> %d %e\n", i+1, c.Weight)
		fmt.Fprintf(w, "<MEAN> %d\n", len(c.Mean))
		fmt.Fprintln(w, FormatVec(c.Mean))
		fmt.Fprintf(w, "<VARIANCE> %d\n", len(c.Variance))
		fmt.Fprintln(w, FormatVec(c.Variance))
		fmt.Fprintf(w, "<GCONST> %e\n", c.GConst)
	}
}
