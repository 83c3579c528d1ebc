package toolrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type recordingRunner struct {
	calls  []string
	output string
	err    error
}

func (r *recordingRunner) Run(_ context.Context, bin string, args []string, stdout io.Writer) error {
	r.calls = append(r.calls, bin+" "+strings.Join(args, " "))
	if r.err != nil {
		return r.err
	}
	if stdout != nil {
		fmt.Fprint(stdout, r.output)
	}
	return nil
}

func TestContextOptionsArgs(t *testing.T) {
	got := ContextOptions{SilPDFClasses: 5, SilPhones: []int{1, 2, 3}}.Args()
	want := []string{"--sil-pdf-classes=5", "--sil-phones=1,2,3"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Args = %v, want %v", got, want)
	}
	got = ContextOptions{SilPDFClasses: 3}.Args()
	if got[1] != "--sil-phones=" {
		t.Errorf("empty sil phones = %q", got[1])
	}
}

func TestHelpers(t *testing.T) {
	dir := t.TempDir()
	r := &recordingRunner{output: "1 0 1 0 0 1 0.5 1 0\n"}
	ctx := context.Background()

	trans := filepath.Join(dir, "transitions.txt")
	if err := PrintTransitions(ctx, r, "pt", "final.mdl", trans); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(trans)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != r.output {
		t.Errorf("dump = %q, want %q", data, r.output)
	}

	if err := ContextToPDF(ctx, r, "c2p", ContextOptions{SilPDFClasses: 3, SilPhones: []int{1}}, "phones.txt", "tree", filepath.Join(dir, "ctx.txt")); err != nil {
		t.Fatal(err)
	}
	if err := GMMCopy(ctx, r, "gc", "final.mdl", filepath.Join(dir, "gmm.txt")); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"pt final.mdl",
		"c2p --sil-pdf-classes=3 --sil-phones=1 phones.txt tree",
		"gc --binary=false final.mdl " + filepath.Join(dir, "gmm.txt"),
	}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v", r.calls)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, r.calls[i], want[i])
		}
	}
}

func TestHelpers_RunnerError(t *testing.T) {
	r := &recordingRunner{err: errors.New("boom")}
	err := PrintTransitions(context.Background(), r, "pt", "m", filepath.Join(t.TempDir(), "t.txt"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := ExecRunner{}
	err := r.Run(context.Background(), "kaldi2htk-no-such-binary", nil, io.Discard)
	if err == nil {
		t.Error("expected error for missing binary")
	}
}
