package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	kaldi2htk "github.com/ieee0824/kaldi2htk"
	"github.com/ieee0824/kaldi2htk/acoustic"
	"github.com/ieee0824/kaldi2htk/internal/config"
	"github.com/ieee0824/kaldi2htk/internal/toolrun"
	"github.com/ieee0824/kaldi2htk/kaldi"
)

// autoSilPhones selects detection by name instead of explicit ids.
const autoSilPhones = "auto"

var convertFlags struct {
	silPhones       string
	silNames        string
	vecSize         int
	silPDFClasses   int
	naming          string
	noisePhones     string
	noGMM           bool
	strict          bool
	phoneAware      bool
	workDir         string
	keepDumps       bool
	transitionsDump string
	ctxDump         string
	gmmDump         string
	report          string
	progress        bool
}

var convertCmd = &cobra.Command{
	Use:   "convert MODEL PHONES TREE OUT_MODEL OUT_TIEDLIST",
	Short: "Convert a Kaldi model to an HTK MMF and tied list",
	Long: `Runs print-transitions, context-to-pdf and gmm-copy on the Kaldi model,
then writes the HTK model definitions and the tied-state list.

Examples:
  kaldi2htk convert exp/tri3/final.mdl data/lang/phones.txt exp/tri3/tree hmmdefs tiedlist
  kaldi2htk convert final.mdl phones.txt tree hmmdefs tiedlist --silphones auto --naming ap
  kaldi2htk convert final.mdl phones.txt tree hmmdefs tiedlist --no-gmm --vec-size 39`,
	Args: cobra.ExactArgs(5),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	def := config.Default().Conversion
	f := convertCmd.Flags()
	f.StringVar(&convertFlags.silPhones, "silphones", def.SilPhones, `comma-separated silence phone ids, or "auto" to detect them by name`)
	f.StringVar(&convertFlags.silNames, "sil", strings.Join(def.SilNames, ","), "silence phone names used by --silphones auto")
	f.IntVar(&convertFlags.vecSize, "vec-size", def.VecSize, "feature dimension of placeholder states (--no-gmm)")
	f.IntVar(&convertFlags.silPDFClasses, "sil-pdf-classes", def.SilPDFClasses, "pdf classes of silence phones")
	f.StringVar(&convertFlags.naming, "naming", def.Naming, "model naming style: htk or ap")
	f.StringVar(&convertFlags.noisePhones, "noise-phones", "", "noise phones for --naming ap (default "+strings.Join(acoustic.DefaultNoisePhones, ",")+")")
	f.BoolVar(&convertFlags.noGMM, "no-gmm", false, "write placeholder states instead of converting GMMs")
	f.BoolVar(&convertFlags.strict, "strict", false, "fail on a missing transition probability")
	f.BoolVar(&convertFlags.phoneAware, "phone-aware", false, "look transitions up per phone")
	f.StringVar(&convertFlags.workDir, "work-dir", "", "directory for intermediate dumps (default: temporary)")
	f.BoolVar(&convertFlags.keepDumps, "keep-dumps", false, "keep intermediate dumps")
	f.StringVar(&convertFlags.transitionsDump, "transitions-dump", "", "use this print-transitions output instead of running the binary")
	f.StringVar(&convertFlags.ctxDump, "ctx-dump", "", "use this context-to-pdf output instead of running the binary")
	f.StringVar(&convertFlags.gmmDump, "gmm-dump", "", "use this gmm-copy output instead of running the binary")
	f.StringVar(&convertFlags.report, "report", "", "write a YAML conversion report to this file")
	f.BoolVar(&convertFlags.progress, "progress", false, "show progress while writing the model")
}

// mergeFlags overrides cfg with the flags set on the command line.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	c := &cfg.Conversion
	changed := cmd.Flags().Changed
	if changed("silphones") {
		c.SilPhones = convertFlags.silPhones
	}
	if changed("sil") {
		c.SilNames = splitList(convertFlags.silNames)
	}
	if changed("vec-size") {
		c.VecSize = convertFlags.vecSize
	}
	if changed("sil-pdf-classes") {
		c.SilPDFClasses = convertFlags.silPDFClasses
	}
	if changed("naming") {
		c.Naming = convertFlags.naming
	}
	if changed("noise-phones") {
		c.NoisePhones = splitList(convertFlags.noisePhones)
	}
	if changed("no-gmm") {
		c.NoGMM = convertFlags.noGMM
	}
	if changed("strict") {
		c.Strict = convertFlags.strict
	}
	if changed("phone-aware") {
		c.PhoneAware = convertFlags.phoneAware
	}
	if changed("work-dir") {
		c.WorkDir = convertFlags.workDir
	}
	if changed("keep-dumps") {
		c.KeepDumps = convertFlags.keepDumps
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// converterOptions translates the merged settings into converter options.
func converterOptions(cfg config.Config) ([]kaldi2htk.Option, error) {
	c := cfg.Conversion
	namer, err := acoustic.NamerByName(c.Naming, c.NoisePhones)
	if err != nil {
		return nil, err
	}
	opts := []kaldi2htk.Option{
		kaldi2htk.WithTools(toolrun.Tools{
			PrintTransitions: cfg.Tools.PrintTransitions,
			ContextToPDF:     cfg.Tools.ContextToPDF,
			GMMCopy:          cfg.Tools.GMMCopy,
		}),
		kaldi2htk.WithVecSize(c.VecSize),
		kaldi2htk.WithSilPDFClasses(c.SilPDFClasses),
		kaldi2htk.WithSilNames(c.SilNames),
		kaldi2htk.WithNamer(namer),
		kaldi2htk.WithGMM(!c.NoGMM),
		kaldi2htk.WithStrict(c.Strict),
		kaldi2htk.WithPhoneAwareTransitions(c.PhoneAware),
		kaldi2htk.WithWorkDir(c.WorkDir),
		kaldi2htk.WithKeepDumps(c.KeepDumps),
	}
	if !strings.EqualFold(strings.TrimSpace(c.SilPhones), autoSilPhones) {
		ids, err := kaldi.ParseIDs(c.SilPhones)
		if err != nil {
			return nil, errors.Wrap(err, "--silphones")
		}
		if ids == nil {
			ids = []int{}
		}
		opts = append(opts, kaldi2htk.WithSilPhones(ids))
	}
	return opts, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	log := logger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mergeFlags(cmd, &cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	opts, err := converterOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, kaldi2htk.WithLogger(log))

	var bar *progressbar.ProgressBar
	if convertFlags.progress {
		bar = progressbar.DefaultBytes(-1, "writing model")
		opts = append(opts, kaldi2htk.WithModelWriter(func(w io.Writer) io.Writer {
			return io.MultiWriter(w, bar)
		}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in := kaldi2htk.Inputs{
		Model:           args[0],
		Phones:          args[1],
		Tree:            args[2],
		OutModel:        args[3],
		OutTiedList:     args[4],
		TransitionsDump: convertFlags.transitionsDump,
		ContextDump:     convertFlags.ctxDump,
		GMMDump:         convertFlags.gmmDump,
	}
	report, err := kaldi2htk.NewConverter(opts...).Convert(ctx, in)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Error().Err(err).Msg("conversion failed")
		return err
	}

	if convertFlags.report != "" {
		f, err := os.Create(convertFlags.report)
		if err != nil {
			return errors.Wrap(err, "create report")
		}
		defer f.Close()
		if err := report.WriteYAML(f); err != nil {
			return err
		}
		log.Info().Str("path", convertFlags.report).Msg("report written")
	}
	return nil
}
