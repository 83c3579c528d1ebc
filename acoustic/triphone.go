package acoustic

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Triphone is an HTK model name: "left-center+right" for triphones, the bare
// phone for monophones.
type Triphone string

// MakeTriphone constructs a triphone string from its components.
func MakeTriphone(left, center, right string) Triphone {
	return Triphone(fmt.Sprintf("%s-%s+%s", left, center, right))
}

// Namer maps a Kaldi context to an HTK model name.
type Namer interface {
	Name(c Context) Triphone
}

// HTKNamer keeps the Kaldi phone names unchanged.
type HTKNamer struct{}

// Name implements Namer.
func (HTKNamer) Name(c Context) Triphone {
	if c.IsMonophone() {
		return Triphone(c.Center)
	}
	return MakeTriphone(c.Left, c.Center, c.Right)
}

// DefaultNoisePhones is the noise inventory of the AP phone set.
var DefaultNoisePhones = []string{"CG", "ER", "GR", "HM", "LA", "LB", "LS", "NS", "SIL"}

// APNamer renders noise phones as "_x_" and models a triphone with a noise
// center as that noise monophone.
type APNamer struct {
	noise map[string]bool
}

// NewAPNamer creates an APNamer. An empty list selects DefaultNoisePhones.
func NewAPNamer(noise []string) *APNamer {
	if len(noise) == 0 {
		noise = DefaultNoisePhones
	}
	n := &APNamer{noise: make(map[string]bool, len(noise))}
	for _, p := range noise {
		n.noise[strings.ToUpper(strings.TrimSpace(p))] = true
	}
	return n
}

// isNoise ignores case, as silence detection does.
func (n *APNamer) isNoise(p string) bool {
	return n.noise[strings.ToUpper(p)]
}

func (n *APNamer) phone(p string) string {
	if n.isNoise(p) {
		return "_" + strings.ToLower(p) + "_"
	}
	return p
}

// Name implements Namer.
func (n *APNamer) Name(c Context) Triphone {
	if c.IsMonophone() || n.isNoise(c.Center) {
		return Triphone(n.phone(c.Center))
	}
	return MakeTriphone(n.phone(c.Left), n.phone(c.Center), n.phone(c.Right))
}

// NamerByName returns the namer for a naming style ("htk" or "ap").
func NamerByName(style string, noise []string) (Namer, error) {
	switch strings.ToLower(style) {
	case "", "htk":
		return HTKNamer{}, nil
	case "ap":
		return NewAPNamer(noise), nil
	default:
		return nil, errors.Errorf("unknown naming style %q", style)
	}
}
