// Package kaldi2htk converts Kaldi GMM acoustic models (model, phone table
// and context tree) to an HTK MMF plus tied-state list.
package kaldi2htk

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ieee0824/kaldi2htk/acoustic"
	"github.com/ieee0824/kaldi2htk/htk"
	"github.com/ieee0824/kaldi2htk/internal/toolrun"
	"github.com/ieee0824/kaldi2htk/kaldi"
)

// Dump file names inside the work directory.
const (
	TransitionsDumpName = "transitions.txt"
	ContextDumpName     = "ctx.txt"
	GMMDumpName         = "gmm.txt"
)

// Inputs names the files of one conversion. A non-empty dump path is parsed
// as is instead of running the binary that would produce it.
type Inputs struct {
	Model       string
	Phones      string
	Tree        string
	OutModel    string
	OutTiedList string

	TransitionsDump string
	ContextDump     string
	GMMDump         string
}

// Dumps records the intermediate files a conversion parsed.
type Dumps struct {
	Transitions string `yaml:"transitions,omitempty"`
	Contexts    string `yaml:"contexts,omitempty"`
	GMM         string `yaml:"gmm,omitempty"`
}

// Converter runs the Kaldi to HTK conversion.
type Converter struct {
	Tools         toolrun.Tools
	Runner        toolrun.Runner
	VecSize       int      // placeholder state dimension without GMMs
	SilPDFClasses int      // pdf classes of silence phones
	SilPhones     []int    // nil: detect from SilNames
	SilNames      []string // silence phone names for detection
	Namer         acoustic.Namer
	UseGMM        bool
	Strict        bool
	PhoneAware    bool
	WorkDir       string // "" uses a temporary directory
	KeepDumps     bool
	Logger        zerolog.Logger

	wrapModel func(io.Writer) io.Writer
}

// Option configures a Converter.
type Option func(*Converter)

// WithTools sets the Kaldi binary paths.
func WithTools(t toolrun.Tools) Option {
	return func(c *Converter) {
		c.Tools = t
	}
}

// WithRunner replaces the process runner.
func WithRunner(r toolrun.Runner) Option {
	return func(c *Converter) {
		c.Runner = r
	}
}

// WithVecSize sets the vector size of placeholder states.
func WithVecSize(n int) Option {
	return func(c *Converter) {
		c.VecSize = n
	}
}

// WithSilPDFClasses sets the pdf-class count of silence phones (HTK uses 3,
// Kaldi defaults to 5).
func WithSilPDFClasses(n int) Option {
	return func(c *Converter) {
		c.SilPDFClasses = n
	}
}

// WithSilPhones sets explicit silence phone ids.
func WithSilPhones(ids []int) Option {
	return func(c *Converter) {
		c.SilPhones = ids
	}
}

// WithSilNames sets the phone names used to detect silence phones.
func WithSilNames(names []string) Option {
	return func(c *Converter) {
		c.SilNames = names
	}
}

// WithNamer sets the HTK model naming.
func WithNamer(n acoustic.Namer) Option {
	return func(c *Converter) {
		c.Namer = n
	}
}

// WithGMM enables or disables conversion of the GMM parameters.
func WithGMM(enabled bool) Option {
	return func(c *Converter) {
		c.UseGMM = enabled
	}
}

// WithStrict makes a missing transition probability fatal.
func WithStrict(strict bool) Option {
	return func(c *Converter) {
		c.Strict = strict
	}
}

// WithPhoneAwareTransitions looks transitions up by (pdf, phone, state, index).
func WithPhoneAwareTransitions(enabled bool) Option {
	return func(c *Converter) {
		c.PhoneAware = enabled
	}
}

// WithWorkDir sets the directory for intermediate dumps.
func WithWorkDir(dir string) Option {
	return func(c *Converter) {
		c.WorkDir = dir
	}
}

// WithKeepDumps keeps intermediate dumps after the conversion.
func WithKeepDumps(keep bool) Option {
	return func(c *Converter) {
		c.KeepDumps = keep
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Converter) {
		c.Logger = l
	}
}

// WithModelWriter wraps the model output, e.g. to report progress.
func WithModelWriter(wrap func(io.Writer) io.Writer) Option {
	return func(c *Converter) {
		c.wrapModel = wrap
	}
}

// NewConverter creates a Converter with the defaults of the original tool:
// vector size 39, 3 silence pdf classes, GMM conversion on.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		Tools:         toolrun.DefaultTools(),
		VecSize:       39,
		SilPDFClasses: 3,
		SilNames:      kaldi.DefaultSilenceNames,
		Namer:         acoustic.HTKNamer{},
		UseGMM:        true,
		Logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Runner == nil {
		c.Runner = toolrun.ExecRunner{Logger: c.Logger}
	}
	return c
}

// Convert runs the binaries, builds the model and writes both outputs.
func (c *Converter) Convert(ctx context.Context, in Inputs) (*Report, error) {
	runID := uuid.NewString()
	log := c.Logger.With().Str("run", runID).Logger()

	phones, err := kaldi.LoadPhonesFile(in.Phones)
	if err != nil {
		return nil, errors.Wrap(err, "load phones")
	}
	silPhones := c.SilPhones
	if silPhones == nil {
		silPhones = phones.DetectSilence(c.SilNames)
		log.Info().Str("ids", kaldi.FormatIDs(silPhones)).Msg("detected silence phones")
	}

	workDir, temp, err := c.prepareWorkDir()
	if err != nil {
		return nil, err
	}
	var created []string
	defer func() {
		c.cleanup(workDir, temp, created)
	}()

	dumps, created, err := c.dump(ctx, log, in, silPhones, workDir)
	if err != nil {
		return nil, err
	}

	bin, err := c.load(phones, dumps)
	if err != nil {
		return nil, err
	}
	m, report, err := Build(bin, BuildOptions{
		VecSize:    c.VecSize,
		Namer:      c.Namer,
		Strict:     c.Strict,
		PhoneAware: c.PhoneAware,
		Logger:     log,
	})
	if err != nil {
		return nil, errors.Wrap(err, "build model")
	}
	report.RunID = runID
	report.SilPhones = silPhones
	if c.KeepDumps {
		report.Dumps = dumps
	}

	if err := c.writeModel(in.OutModel, m); err != nil {
		return nil, err
	}
	entries := htk.TiedList(clusters(bin.Topologies), c.Namer)
	for _, e := range entries {
		if e.Alias != "" {
			report.TiedAliases++
		}
	}
	if err := writeFile(in.OutTiedList, func(w io.Writer) error {
		return htk.WriteTiedList(w, entries)
	}); err != nil {
		return nil, err
	}

	log.Info().
		Int("hmms", report.HMMs).Int("states", report.States).
		Int("mixtures", report.Mixtures).Int("tied", report.TiedAliases).
		Int("missing_transitions", report.MissingTransitions).
		Msg("conversion finished")
	return report, nil
}

// prepareWorkDir returns the dump directory and whether it is a temporary
// one owned by this run.
func (c *Converter) prepareWorkDir() (string, bool, error) {
	if c.WorkDir != "" {
		if err := os.MkdirAll(c.WorkDir, 0o755); err != nil {
			return "", false, errors.Wrap(err, "create work dir")
		}
		return c.WorkDir, false, nil
	}
	dir, err := os.MkdirTemp("", "kaldi2htk-")
	if err != nil {
		return "", false, errors.Wrap(err, "create work dir")
	}
	return dir, true, nil
}

// cleanup removes the dumps this run wrote. Dumps passed in through Inputs
// are never in created.
func (c *Converter) cleanup(dir string, temp bool, created []string) {
	if c.KeepDumps {
		return
	}
	if temp {
		os.RemoveAll(dir)
		return
	}
	for _, path := range created {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.Logger.Warn().Err(err).Str("path", path).Msg("remove dump")
		}
	}
}

// dump runs the binaries for every dump the caller did not supply. created
// lists the files it wrote, including partial output of a failed run.
func (c *Converter) dump(ctx context.Context, log zerolog.Logger, in Inputs, silPhones []int, workDir string) (Dumps, []string, error) {
	var created []string
	d := Dumps{
		Transitions: in.TransitionsDump,
		Contexts:    in.ContextDump,
		GMM:         in.GMMDump,
	}

	if d.Transitions == "" {
		d.Transitions = filepath.Join(workDir, TransitionsDumpName)
		created = append(created, d.Transitions)
		log.Info().Str("bin", c.Tools.PrintTransitions).Msg("dumping transitions")
		if err := toolrun.PrintTransitions(ctx, c.Runner, c.Tools.PrintTransitions, in.Model, d.Transitions); err != nil {
			return d, created, errors.Wrap(err, "print transitions")
		}
	}

	if d.Contexts == "" {
		d.Contexts = filepath.Join(workDir, ContextDumpName)
		created = append(created, d.Contexts)
		opts := toolrun.ContextOptions{SilPDFClasses: c.SilPDFClasses, SilPhones: silPhones}
		log.Info().Str("bin", c.Tools.ContextToPDF).Msg("dumping contexts")
		if err := toolrun.ContextToPDF(ctx, c.Runner, c.Tools.ContextToPDF, opts, in.Phones, in.Tree, d.Contexts); err != nil {
			return d, created, errors.Wrap(err, "context to pdf")
		}
	}

	if !c.UseGMM {
		d.GMM = ""
	} else if d.GMM == "" {
		d.GMM = filepath.Join(workDir, GMMDumpName)
		created = append(created, d.GMM)
		log.Info().Str("bin", c.Tools.GMMCopy).Msg("dumping GMMs")
		if err := toolrun.GMMCopy(ctx, c.Runner, c.Tools.GMMCopy, in.Model, d.GMM); err != nil {
			return d, created, errors.Wrap(err, "gmm copy")
		}
	}
	return d, created, nil
}

func (c *Converter) load(phones *kaldi.PhoneTable, d Dumps) (BuildInput, error) {
	bin := BuildInput{Phones: phones}

	err := readFile(d.Transitions, func(r io.Reader) (err error) {
		bin.Transitions, err = kaldi.LoadTransitions(r)
		return err
	})
	if err != nil {
		return bin, errors.Wrap(err, "load transitions")
	}

	err = readFile(d.Contexts, func(r io.Reader) (err error) {
		bin.Topologies, err = kaldi.LoadTopologies(r)
		return err
	})
	if err != nil {
		return bin, errors.Wrap(err, "load contexts")
	}

	if d.GMM != "" {
		err = readFile(d.GMM, func(r io.Reader) (err error) {
			bin.GMMs, err = kaldi.LoadAmDiagGMM(r)
			return err
		})
		if err != nil {
			return bin, errors.Wrap(err, "load GMMs")
		}
	}
	return bin, nil
}

func (c *Converter) writeModel(path string, m *acoustic.Model) error {
	return writeFile(path, func(w io.Writer) error {
		if c.wrapModel != nil {
			w = c.wrapModel(w)
		}
		return htk.WriteModel(w, m)
	})
}

func clusters(tops []*kaldi.Topology) []htk.Cluster {
	out := make([]htk.Cluster, len(tops))
	for i, t := range tops {
		out[i] = htk.Cluster{Contexts: t.Contexts}
	}
	return out
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "sync output")
	}
	return errors.Wrap(f.Close(), "close output")
}
