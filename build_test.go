package kaldi2htk

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ieee0824/kaldi2htk/acoustic"
	"github.com/ieee0824/kaldi2htk/htk"
	"github.com/ieee0824/kaldi2htk/kaldi"
)

func buildPhones() *kaldi.PhoneTable {
	p := kaldi.NewPhoneTable()
	p.Add("<eps>", 0)
	p.Add("a", 1)
	p.Add("#0", 2)
	return p
}

func fullTransitions(pdfs []int, phone int) *kaldi.TransitionTable {
	tt := kaldi.NewTransitionTable()
	for i, pdf := range pdfs {
		tt.Add(pdf, phone, i, 0, 0.75)
		tt.Add(pdf, phone, i, 1, 0.25)
	}
	return tt
}

func TestBuild_ReparameterizationKeepsLikelihood(t *testing.T) {
	dg := &kaldi.DiagGMM{
		Weights:      []float64{0.3, 0.7},
		MeansInvVars: [][]float64{{1, -0.5}, {0.2, 3}},
		InvVars:      [][]float64{{2, 0.5}, {0.8, 4}},
	}
	dg.GConsts = dg.ComputeGConsts()

	in := BuildInput{
		Phones:      buildPhones(),
		Transitions: fullTransitions([]int{0}, 1),
		Topologies: []*kaldi.Topology{
			{PDFs: []int{0}, Contexts: []acoustic.Context{acoustic.Monophone("a")}},
		},
		GMMs: &kaldi.AmDiagGMM{Dim: 2, PDFs: []*kaldi.DiagGMM{dg}},
	}
	m, report, err := Build(in, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.GConstMismatches != 0 {
		t.Errorf("GConstMismatches = %d, want 0", report.GConstMismatches)
	}

	for _, x := range [][]float64{{0, 0}, {0.5, -1}, {2, 0.75}} {
		want := dg.LogLikelihood(x)
		got := m.States[0].LogProb(x)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("LogProb(%v) = %f, Kaldi log-likelihood %f", x, got, want)
		}
	}
}

func TestBuild_GConstMismatch(t *testing.T) {
	dg := &kaldi.DiagGMM{
		GConsts:      []float64{-10},
		Weights:      []float64{1},
		MeansInvVars: [][]float64{{1}},
		InvVars:      [][]float64{{1}},
	}
	in := BuildInput{
		Phones:      buildPhones(),
		Transitions: fullTransitions([]int{0}, 1),
		Topologies: []*kaldi.Topology{
			{PDFs: []int{0}, Contexts: []acoustic.Context{acoustic.Monophone("a")}},
		},
		GMMs: &kaldi.AmDiagGMM{Dim: 1, PDFs: []*kaldi.DiagGMM{dg}},
	}
	_, report, err := Build(in, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.GConstMismatches != 1 {
		t.Errorf("GConstMismatches = %d, want 1", report.GConstMismatches)
	}
}

func TestBuild_PDFMissingFromGMMs(t *testing.T) {
	dg := &kaldi.DiagGMM{
		Weights:      []float64{1},
		MeansInvVars: [][]float64{{0}},
		InvVars:      [][]float64{{1}},
	}
	in := BuildInput{
		Phones:      buildPhones(),
		Transitions: fullTransitions([]int{0, 4}, 1),
		Topologies: []*kaldi.Topology{
			{PDFs: []int{0, 4}, Contexts: []acoustic.Context{acoustic.Monophone("a")}},
		},
		GMMs: &kaldi.AmDiagGMM{Dim: 1, PDFs: []*kaldi.DiagGMM{dg}},
	}
	_, _, err := Build(in, BuildOptions{})
	if err == nil || !strings.Contains(err.Error(), "pdf 4") {
		t.Errorf("err = %v, want missing pdf 4", err)
	}
}

func TestBuild_TransitionPlacement(t *testing.T) {
	tt := kaldi.NewTransitionTable()
	tt.Add(7, 1, 0, 0, 0.6)
	tt.Add(7, 1, 0, 1, 0.4)
	tt.Add(8, 1, 1, 0, 0.9)
	tt.Add(8, 1, 1, 1, 0.1)

	in := BuildInput{
		Phones:      buildPhones(),
		Transitions: tt,
		Topologies: []*kaldi.Topology{
			{PDFs: []int{7, 8}, Contexts: []acoustic.Context{acoustic.NewTriphone("a", "a", "a")}},
		},
	}
	m, _, err := Build(in, BuildOptions{VecSize: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	h := m.HMMs[0]
	if h.Name != "a-a+a" || h.Trans.Name != "T_7_8" {
		t.Errorf("hmm = %s, trans = %s", h.Name, h.Trans.Name)
	}
	want := [][]float64{
		{0, 1, 0, 0},
		{0, 0.6, 0.4, 0},
		{0, 0, 0.9, 0.1},
		{0, 0, 0, 0},
	}
	for i, row := range want {
		for j, p := range row {
			if got := h.Trans.At(i, j); got != p {
				t.Errorf("A[%d][%d] = %f, want %f", i, j, got, p)
			}
		}
	}
	if len(m.States) != 2 || m.States[7].Dim != 2 {
		t.Errorf("placeholder states = %v", m.States)
	}
}

func TestBuild_MissingTransitions(t *testing.T) {
	tests := []struct {
		name    string
		center  string
		strict  bool
		wantErr bool
		missing int
	}{
		{"lenient", "a", false, false, 2},
		{"strict", "a", true, true, 0},
		{"strict disambiguation", "#0", true, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := BuildInput{
				Phones:      buildPhones(),
				Transitions: kaldi.NewTransitionTable(),
				Topologies: []*kaldi.Topology{
					{PDFs: []int{3}, Contexts: []acoustic.Context{acoustic.Monophone(tt.center)}},
				},
			}
			_, report, err := Build(in, BuildOptions{VecSize: 1, Strict: tt.strict})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if report.MissingTransitions != tt.missing {
				t.Errorf("MissingTransitions = %d, want %d", report.MissingTransitions, tt.missing)
			}
		})
	}
}

func TestBuild_UnknownPhone(t *testing.T) {
	in := BuildInput{
		Phones:      buildPhones(),
		Transitions: kaldi.NewTransitionTable(),
		Topologies: []*kaldi.Topology{
			{PDFs: []int{0}, Contexts: []acoustic.Context{acoustic.Monophone("zz")}},
		},
	}
	if _, _, err := Build(in, BuildOptions{VecSize: 1}); err == nil {
		t.Error("expected error for a phone outside the table")
	}
}

func TestBuild_PhoneAwareCollisions(t *testing.T) {
	phones := buildPhones()
	phones.Add("b", 3)
	tt := kaldi.NewTransitionTable()
	tt.Add(0, 1, 0, 0, 0.75)
	tt.Add(0, 1, 0, 1, 0.25)
	tt.Add(0, 3, 0, 0, 0.5)
	tt.Add(0, 3, 0, 1, 0.5)

	in := BuildInput{
		Phones:      phones,
		Transitions: tt,
		Topologies: []*kaldi.Topology{
			{PDFs: []int{0}, Contexts: []acoustic.Context{acoustic.Monophone("a")}},
		},
	}

	m, report, err := Build(in, BuildOptions{VecSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if report.Collisions != 2 {
		t.Errorf("Collisions = %d, want 2", report.Collisions)
	}
	if got := m.HMMs[0].Trans.At(1, 1); got != 0.5 {
		t.Errorf("plain lookup self-loop = %f, want last row 0.5", got)
	}

	m, _, err = Build(in, BuildOptions{VecSize: 1, PhoneAware: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := m.HMMs[0].Trans.At(1, 1); got != 0.75 {
		t.Errorf("phone-aware self-loop = %f, want 0.75", got)
	}
}

func TestReport_WriteYAML(t *testing.T) {
	r := &Report{RunID: "abc", HMMs: 2, States: 6, SilPhones: []int{1}}
	var buf bytes.Buffer
	if err := r.WriteYAML(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run_id: abc\n", "hmms: 2\n", "states: 6\n", "sil_phones:\n  - 1\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "dumps:") {
		t.Errorf("empty dumps should be omitted:\n%s", out)
	}
}

func TestBuild_DuplicateModelNames(t *testing.T) {
	phones := buildPhones()
	phones.Add("ER", 3)
	tt := fullTransitions([]int{0}, 3)
	tt.Add(1, 3, 0, 0, 0.5)
	tt.Add(1, 3, 0, 1, 0.5)

	in := BuildInput{
		Phones:      phones,
		Transitions: tt,
		Topologies: []*kaldi.Topology{
			{PDFs: []int{0}, Contexts: []acoustic.Context{acoustic.NewTriphone("a", "ER", "a")}},
			{PDFs: []int{1}, Contexts: []acoustic.Context{acoustic.NewTriphone("ER", "ER", "a")}},
		},
	}
	m, report, err := Build(in, BuildOptions{VecSize: 1, Namer: acoustic.NewAPNamer(nil)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.DuplicateNames != 1 {
		t.Errorf("DuplicateNames = %d, want 1", report.DuplicateNames)
	}
	if len(m.HMMs) != 1 || len(m.Transitions) != 1 {
		t.Fatalf("hmms = %d, transitions = %d, want 1 each", len(m.HMMs), len(m.Transitions))
	}
	if h := m.HMMs[0]; h.Name != "_er_" || h.Trans.Name != "T_0" {
		t.Errorf("kept %s with %s, want _er_ with T_0", h.Name, h.Trans.Name)
	}

	var buf bytes.Buffer
	if err := htk.WriteModel(&buf, m); err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(buf.String(), `~h "_er_"`); n != 1 {
		t.Errorf(`~h "_er_" defined %d times, want 1`, n)
	}
}
