package kaldi

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// DiagGMM is one pdf of a Kaldi AmDiagGmm in its native parameterization.
type DiagGMM struct {
	GConsts      []float64
	Weights      []float64
	MeansInvVars [][]float64 // [mix][dim] mean * inverse variance
	InvVars      [][]float64 // [mix][dim] inverse variance
}

// NumComponents returns the number of mixture components.
func (g *DiagGMM) NumComponents() int {
	return len(g.Weights)
}

// ComputeGConsts recomputes the per-component constants Kaldi stores in
// <GCONSTS>: log w - 0.5 (d log 2π - Σ log iv + Σ miv²/iv).
func (g *DiagGMM) ComputeGConsts() []float64 {
	out := make([]float64, len(g.Weights))
	for m, w := range g.Weights {
		dim := len(g.InvVars[m])
		gc := math.Log(w) - 0.5*float64(dim)*math.Log(2*math.Pi)
		for d, iv := range g.InvVars[m] {
			miv := g.MeansInvVars[m][d]
			gc += 0.5*math.Log(iv) - 0.5*miv*miv/iv
		}
		out[m] = gc
	}
	return out
}

// LogLikelihood returns the mixture log density of x using the stored
// gconsts: log Σ exp(gc + miv·x - 0.5 iv·x²).
func (g *DiagGMM) LogLikelihood(x []float64) float64 {
	terms := make([]float64, len(g.GConsts))
	for m, gc := range g.GConsts {
		ll := gc
		for d, xd := range x {
			ll += g.MeansInvVars[m][d]*xd - 0.5*g.InvVars[m][d]*xd*xd
		}
		terms[m] = ll
	}
	return floats.LogSumExp(terms)
}

func (g *DiagGMM) validate(dim int) error {
	k := len(g.Weights)
	if len(g.MeansInvVars) != k || len(g.InvVars) != k {
		return errors.Errorf("%d weights, %d mean rows, %d inverse variance rows",
			k, len(g.MeansInvVars), len(g.InvVars))
	}
	if len(g.GConsts) != 0 && len(g.GConsts) != k {
		return errors.Errorf("%d weights but %d gconsts", k, len(g.GConsts))
	}
	for m := 0; m < k; m++ {
		if len(g.MeansInvVars[m]) != dim || len(g.InvVars[m]) != dim {
			return errors.Errorf("component %d has width %d/%d, want %d",
				m, len(g.MeansInvVars[m]), len(g.InvVars[m]), dim)
		}
	}
	return nil
}

// AmDiagGMM is the acoustic-model part of a Kaldi GMM model.
type AmDiagGMM struct {
	Dim  int
	PDFs []*DiagGMM
}

type arrayTarget int

const (
	targetNone arrayTarget = iota
	targetGConsts
	targetWeights
	targetMeansInvVars
	targetInvVars
)

func (a arrayTarget) isMatrix() bool {
	return a == targetMeansInvVars || a == targetInvVars
}

// gmmParser is a small state machine over the tagged text written by
// gmm-copy --binary=false.
type gmmParser struct {
	am      *AmDiagGMM
	numPDFs int
	cur     *DiagGMM
	target  arrayTarget
	inArray bool
	row     []float64
	rows    [][]float64
	expect  string // scalar tag awaiting its value
	lineNum int
}

func (p *gmmParser) store() {
	switch p.target {
	case targetGConsts:
		p.cur.GConsts = p.row
	case targetWeights:
		p.cur.Weights = p.row
	case targetMeansInvVars:
		p.cur.MeansInvVars = p.rows
	case targetInvVars:
		p.cur.InvVars = p.rows
	}
	p.row, p.rows = nil, nil
	p.inArray = false
	p.target = targetNone
}

func (p *gmmParser) closePDF() error {
	if p.cur == nil {
		return nil
	}
	idx := len(p.am.PDFs)
	if p.am.Dim == 0 && len(p.cur.InvVars) > 0 {
		p.am.Dim = len(p.cur.InvVars[0])
	}
	if err := p.cur.validate(p.am.Dim); err != nil {
		return errors.Wrapf(ErrFormat, "pdf %d: %v", idx, err)
	}
	p.am.PDFs = append(p.am.PDFs, p.cur)
	p.cur = nil
	return nil
}

func (p *gmmParser) token(tok string) error {
	if p.inArray {
		if tok == "]" {
			if p.target.isMatrix() && len(p.row) > 0 {
				p.rows = append(p.rows, p.row)
				p.row = nil
			}
			p.store()
			return nil
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return formatErr(p.lineNum, "bad number %q", tok)
		}
		p.row = append(p.row, v)
		return nil
	}

	if p.expect != "" {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return formatErr(p.lineNum, "%s value %q is not an integer", p.expect, tok)
		}
		switch p.expect {
		case "<DIMENSION>":
			p.am.Dim = v
		case "<NUMPDFS>":
			p.numPDFs = v
		}
		p.expect = ""
		return nil
	}

	switch tok {
	case "<DIMENSION>", "<NUMPDFS>":
		p.expect = tok
	case "<DiagGMM>", "<DiagGMMBegin>":
		if err := p.closePDF(); err != nil {
			return err
		}
		p.cur = &DiagGMM{}
	case "</DiagGMM>", "<DiagGMMEnd>":
		return p.closePDF()
	case "<GCONSTS>":
		p.setTarget(targetGConsts)
	case "<WEIGHTS>":
		p.setTarget(targetWeights)
	case "<MEANS_INVVARS>":
		p.setTarget(targetMeansInvVars)
	case "<INV_VARS>":
		p.setTarget(targetInvVars)
	case "[":
		if p.target != targetNone {
			p.inArray = true
		}
	}
	return nil
}

func (p *gmmParser) setTarget(t arrayTarget) {
	if p.cur != nil {
		p.target = t
	}
}

func (p *gmmParser) endLine() {
	if p.inArray && p.target.isMatrix() && len(p.row) > 0 {
		p.rows = append(p.rows, p.row)
		p.row = nil
	}
}

// LoadAmDiagGMM reads the text dump of gmm-copy --binary=false. A leading
// <TransitionModel> section is skipped.
func LoadAmDiagGMM(r io.Reader) (*AmDiagGMM, error) {
	p := &gmmParser{am: &AmDiagGMM{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	for scanner.Scan() {
		p.lineNum++
		for _, tok := range strings.Fields(scanner.Text()) {
			if err := p.token(tok); err != nil {
				return nil, err
			}
		}
		p.endLine()
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read GMM dump")
	}
	if p.inArray {
		return nil, formatErr(p.lineNum, "unterminated array")
	}
	if err := p.closePDF(); err != nil {
		return nil, err
	}
	if len(p.am.PDFs) == 0 {
		return nil, errors.Wrap(ErrFormat, "no <DiagGMM> blocks found")
	}
	if p.numPDFs != 0 && p.numPDFs != len(p.am.PDFs) {
		return nil, errors.Wrapf(ErrFormat, "<NUMPDFS> says %d, found %d", p.numPDFs, len(p.am.PDFs))
	}
	return p.am, nil
}
