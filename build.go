package kaldi2htk

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/kaldi2htk/acoustic"
	"github.com/ieee0824/kaldi2htk/kaldi"
)

// ErrMissingTransition is returned in strict mode when a transition
// probability of a non-disambiguation phone is absent from the dump.
var ErrMissingTransition = errors.New("transition not found")

// gconstTolerance bounds the accepted difference between stored and
// recomputed Kaldi gconsts.
const gconstTolerance = 1e-3

// BuildInput holds the parsed Kaldi artifacts.
type BuildInput struct {
	Phones      *kaldi.PhoneTable
	Transitions *kaldi.TransitionTable
	Topologies  []*kaldi.Topology
	GMMs        *kaldi.AmDiagGMM // nil writes placeholder states
}

// BuildOptions controls model assembly.
type BuildOptions struct {
	VecSize    int // used only without GMMs
	Namer      acoustic.Namer
	Strict     bool
	PhoneAware bool
	Logger     zerolog.Logger
}

// Report summarizes one conversion.
type Report struct {
	RunID              string `yaml:"run_id,omitempty"`
	HMMs               int    `yaml:"hmms"`
	States             int    `yaml:"states"`
	Mixtures           int    `yaml:"mixtures"`
	VecSize            int    `yaml:"vec_size"`
	TiedAliases        int    `yaml:"tied_aliases"`
	MissingTransitions int    `yaml:"missing_transitions"`
	Collisions         int    `yaml:"transition_collisions"`
	GConstMismatches   int    `yaml:"gconst_mismatches"`
	DuplicateNames     int    `yaml:"duplicate_names"`
	SilPhones          []int  `yaml:"sil_phones,omitempty"`
	Dumps              Dumps  `yaml:"dumps,omitempty"`
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrap(enc.Close(), "encode report")
}

// Build assembles the HTK-side model from parsed Kaldi dumps.
func Build(in BuildInput, opts BuildOptions) (*acoustic.Model, *Report, error) {
	if opts.Namer == nil {
		opts.Namer = acoustic.HTKNamer{}
	}
	log := opts.Logger
	report := &Report{}

	vecSize := opts.VecSize
	if in.GMMs != nil {
		vecSize = in.GMMs.Dim
	}
	m := acoustic.NewModel(vecSize)

	if in.Transitions != nil {
		cols := in.Transitions.Collisions()
		for _, c := range cols {
			log.Debug().
				Int("pdf", c.Key.PDF).Int("state", c.Key.State).Int("index", c.Key.Index).
				Ints("phones", c.Phones[:]).Floats64("probs", c.Probs[:]).
				Msg("transition shared by phones")
		}
		if len(cols) > 0 {
			log.Warn().Int("count", len(cols)).Msg("bad transitions read: keys shared by different phones")
		}
		report.Collisions = len(cols)
	}

	defined := make(map[acoustic.Triphone][]int)
	for _, top := range in.Topologies {
		name := opts.Namer.Name(top.Contexts[0])
		if first, ok := defined[name]; ok {
			// The first definition wins, as in the tied list.
			report.DuplicateNames++
			log.Warn().Str("hmm", string(name)).
				Str("kept", acoustic.TransitionName(first)).Str("dropped", acoustic.TransitionName(top.PDFs)).
				Msg("model name already defined")
			continue
		}
		defined[name] = top.PDFs

		tm, missing, err := buildTransitions(top, in, opts)
		if err != nil {
			return nil, nil, err
		}
		report.MissingTransitions += missing
		m.AddHMM(&acoustic.HMM{
			Name:   name,
			States: top.PDFs,
			Trans:  tm,
		})
	}

	if in.GMMs != nil {
		mismatches, err := addGMMStates(m, in.GMMs, log)
		if err != nil {
			return nil, nil, err
		}
		report.GConstMismatches = mismatches
		for _, h := range m.HMMs {
			for _, s := range h.States {
				if _, ok := m.States[s]; !ok {
					return nil, nil, errors.Errorf("pdf %d of %s is not in the GMM dump", s, h.Name)
				}
			}
		}
	} else {
		for _, s := range m.ReferencedStates() {
			m.States[s] = acoustic.DummyGMM(vecSize)
		}
	}

	report.HMMs = len(m.HMMs)
	report.States = len(m.States)
	report.Mixtures = m.NumMixtures()
	report.VecSize = m.VecSize
	return m, report, nil
}

func buildTransitions(top *kaldi.Topology, in BuildInput, opts BuildOptions) (*acoustic.TransitionMatrix, int, error) {
	canonical := top.Contexts[0]
	phoneName := canonical.Center
	phone, ok := in.Phones.ID(phoneName)
	if !ok {
		return nil, 0, errors.Errorf("phone %q of %s is not in the phone table", phoneName, opts.Namer.Name(canonical))
	}
	disambig := in.Phones.IsDisambiguation(phoneName)

	tm := acoustic.NewLeftToRight(acoustic.TransitionName(top.PDFs), len(top.PDFs))
	missing := 0
	for i, pdf := range top.PDFs {
		for b := 0; b < 2; b++ {
			var p float64
			var found bool
			if in.Transitions != nil {
				if opts.PhoneAware {
					p, found = in.Transitions.ProbForPhone(pdf, phone, i, b)
				} else {
					p, found = in.Transitions.Prob(pdf, i, b)
				}
			}
			if found {
				tm.Set(i, b, p)
				continue
			}

			missing++
			ev := opts.Logger.Error()
			if disambig {
				ev = opts.Logger.Info()
			}
			ev.Int("pdf", pdf).Int("phone", phone).Int("state", i).Int("index", b).
				Msg("transition not found")
			if opts.Strict && !disambig {
				return nil, missing, errors.Wrapf(ErrMissingTransition, "pdf %d phone %d at %d %d", pdf, phone, i, b)
			}
		}
	}
	return tm, missing, nil
}

func addGMMStates(m *acoustic.Model, am *kaldi.AmDiagGMM, log zerolog.Logger) (int, error) {
	mismatches := 0
	for pdf, dg := range am.PDFs {
		g := &acoustic.GMM{Dim: am.Dim}
		for k, w := range dg.Weights {
			c, err := acoustic.NewGaussianFromInvVars(w, dg.MeansInvVars[k], dg.InvVars[k])
			if err != nil {
				return 0, errors.Wrapf(err, "pdf %d component %d", pdf, k)
			}
			g.Components = append(g.Components, c)
		}
		m.States[pdf] = g

		if len(dg.GConsts) == len(dg.Weights) {
			for k, gc := range dg.ComputeGConsts() {
				if math.Abs(gc-dg.GConsts[k]) > gconstTolerance*math.Max(1, math.Abs(gc)) {
					mismatches++
					log.Warn().Int("pdf", pdf).Int("component", k).
						Float64("stored", dg.GConsts[k]).Float64("computed", gc).
						Msg("gconst differs from parameters")
				}
			}
		}
	}
	return mismatches, nil
}
