// Package toolrun invokes the external Kaldi binaries that flatten a model
// into the text dumps the converter parses.
package toolrun

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Default binary names, resolved through PATH.
const (
	DefaultPrintTransitions = "print-transitions"
	DefaultContextToPDF     = "context-to-pdf"
	DefaultGMMCopy          = "gmm-copy"
)

// Tools holds the binary paths.
type Tools struct {
	PrintTransitions string
	ContextToPDF     string
	GMMCopy          string
}

// DefaultTools returns the binary names without directories.
func DefaultTools() Tools {
	return Tools{
		PrintTransitions: DefaultPrintTransitions,
		ContextToPDF:     DefaultContextToPDF,
		GMMCopy:          DefaultGMMCopy,
	}
}

// Runner runs one external command. When stdout is non-nil the command's
// standard output is written to it.
type Runner interface {
	Run(ctx context.Context, bin string, args []string, stdout io.Writer) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Logger zerolog.Logger
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, bin string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	r.Logger.Debug().Str("cmd", bin+" "+strings.Join(args, " ")).Msg("running")
	err := cmd.Run()
	if s := strings.TrimSpace(stderr.String()); s != "" {
		r.Logger.Debug().Str("bin", bin).Msg(s)
	}
	if err != nil {
		if s := lastLine(stderr.String()); s != "" {
			return errors.Wrapf(err, "%s: %s", bin, s)
		}
		return errors.Wrap(err, bin)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func runToFile(ctx context.Context, r Runner, bin string, args []string, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "create dump")
	}
	if err := r.Run(ctx, bin, args, f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close dump")
}

// PrintTransitions dumps every transition id of mdl into out.
func PrintTransitions(ctx context.Context, r Runner, bin, mdl, out string) error {
	return runToFile(ctx, r, bin, []string{mdl}, out)
}

// ContextOptions are the pdf-class settings passed to context-to-pdf.
type ContextOptions struct {
	SilPDFClasses int
	SilPhones     []int
}

// Args renders the options as command-line flags.
func (o ContextOptions) Args() []string {
	ids := make([]string, len(o.SilPhones))
	for i, id := range o.SilPhones {
		ids[i] = strconv.Itoa(id)
	}
	return []string{
		"--sil-pdf-classes=" + strconv.Itoa(o.SilPDFClasses),
		"--sil-phones=" + strings.Join(ids, ","),
	}
}

// ContextToPDF dumps the context to pdf mapping of every leaf of tree into out.
func ContextToPDF(ctx context.Context, r Runner, bin string, opts ContextOptions, phones, tree, out string) error {
	args := append(opts.Args(), phones, tree)
	return runToFile(ctx, r, bin, args, out)
}

// GMMCopy writes the text form of the model's GMMs to out.
func GMMCopy(ctx context.Context, r Runner, bin, mdl, out string) error {
	return r.Run(ctx, bin, []string{"--binary=false", mdl, out}, nil)
}
