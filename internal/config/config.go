// Package config loads converter settings from a TOML or YAML file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration.
type Config struct {
	Tools      ToolsConfig      `toml:"tools" yaml:"tools"`
	Conversion ConversionConfig `toml:"conversion" yaml:"conversion"`
}

// ToolsConfig holds paths to the Kaldi binaries.
type ToolsConfig struct {
	PrintTransitions string `toml:"print_transitions" yaml:"print_transitions"`
	ContextToPDF     string `toml:"context_to_pdf" yaml:"context_to_pdf"`
	GMMCopy          string `toml:"gmm_copy" yaml:"gmm_copy"`
}

// ConversionConfig holds the conversion options.
type ConversionConfig struct {
	VecSize       int      `toml:"vec_size" yaml:"vec_size"`
	SilPDFClasses int      `toml:"sil_pdf_classes" yaml:"sil_pdf_classes"`
	SilPhones     string   `toml:"sil_phones" yaml:"sil_phones"`
	SilNames      []string `toml:"sil_names" yaml:"sil_names"`
	Naming        string   `toml:"naming" yaml:"naming"`
	NoisePhones   []string `toml:"noise_phones" yaml:"noise_phones"`
	NoGMM         bool     `toml:"no_gmm" yaml:"no_gmm"`
	Strict        bool     `toml:"strict" yaml:"strict"`
	PhoneAware    bool     `toml:"phone_aware" yaml:"phone_aware"`
	WorkDir       string   `toml:"work_dir" yaml:"work_dir"`
	KeepDumps     bool     `toml:"keep_dumps" yaml:"keep_dumps"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Tools: ToolsConfig{
			PrintTransitions: "print-transitions",
			ContextToPDF:     "context-to-pdf",
			GMMCopy:          "gmm-copy",
		},
		Conversion: ConversionConfig{
			VecSize:       39,
			SilPDFClasses: 3,
			SilPhones:     "1,2,3",
			SilNames:      []string{"SIL", "SPN", "NSN"},
			Naming:        "htk",
		},
	}
}

// Format is the encoding of a configuration file.
type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// DetectFormat picks the format from the file extension. Unknown extensions
// are read as TOML.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Load reads path over the defaults. Keys absent from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()
	path = os.ExpandEnv(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config load failed (%s)", path)
	}
	format := DetectFormat(path)
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "config parse failed (%s, %s)", path, format)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config invalid (%s)", path)
	}
	return cfg, nil
}

// Validate checks value ranges.
func Validate(cfg Config) error {
	if cfg.Conversion.VecSize <= 0 {
		return errors.Errorf("vec_size must be positive, got %d", cfg.Conversion.VecSize)
	}
	if cfg.Conversion.SilPDFClasses <= 0 {
		return errors.Errorf("sil_pdf_classes must be positive, got %d", cfg.Conversion.SilPDFClasses)
	}
	switch strings.ToLower(cfg.Conversion.Naming) {
	case "", "htk", "ap":
	default:
		return errors.Errorf("unknown naming style %q", cfg.Conversion.Naming)
	}
	return nil
}
