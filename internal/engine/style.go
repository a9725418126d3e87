package engine

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Mode selects the move-selection strategy of a style.
type Mode string

const (
	// ModeScore is the default composite-score minimization.
	ModeScore Mode = "score"
	// ModeHumanRandom samples inverse-prior-weighted human-plausible moves.
	ModeHumanRandom Mode = "human-random"
	// ModeMinPolicy plays the least human-likely eligible move.
	ModeMinPolicy Mode = "min-policy"
)

// Weights are the numeric knobs of the composite score. A style's
// weights are fixed at construction and never mutated afterwards.
type Weights struct {
	MaxPointsLost float64 `yaml:"maxPointsLost"`
	SettledWeight float64 `yaml:"settledWeight"`
	MinVisits     int     `yaml:"minVisits"`
	AttachPenalty float64 `yaml:"attachPenalty"`
	TenukiPenalty float64 `yaml:"tenukiPenalty"`
	OpponentFac   float64 `yaml:"opponentFac"`
}

// Style is one named play style.
type Style struct {
	Name         string  `yaml:"name"`
	Mode         Mode    `yaml:"mode"`
	HumanProfile string  `yaml:"humanProfile"`
	Weights      Weights `yaml:"weights"`
}

type styleFile struct {
	Styles []Style `yaml:"styles"`
}

//go:embed styles.yaml
var defaultStyleYAML []byte

// LoadStyles returns the built-in styles, optionally overlaid with
// definitions from an external yaml file (same shape; names collide by
// replacement).
func LoadStyles(extraPath string) (map[string]Style, error) {
	styles, err := parseStyles(defaultStyleYAML)
	if err != nil {
		return nil, fmt.Errorf("builtin styles: %w", err)
	}
	if extraPath != "" {
		raw, err := os.ReadFile(extraPath)
		if err != nil {
			return nil, fmt.Errorf("read style file: %w", err)
		}
		extra, err := parseStyles(raw)
		if err != nil {
			return nil, fmt.Errorf("style file %s: %w", extraPath, err)
		}
		for name, s := range extra {
			styles[name] = s
		}
	}
	return styles, nil
}

// GetStyle resolves one style by name.
func GetStyle(name, extraPath string) (Style, error) {
	styles, err := LoadStyles(extraPath)
	if err != nil {
		return Style{}, err
	}
	key := strings.ToLower(strings.TrimSpace(name))
	s, ok := styles[key]
	if !ok {
		return Style{}, fmt.Errorf("unknown style %q", name)
	}
	return s, nil
}

func parseStyles(raw []byte) (map[string]Style, error) {
	var f styleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	out := make(map[string]Style, len(f.Styles))
	for _, s := range f.Styles {
		if err := ValidateStyle(s); err != nil {
			return nil, err
		}
		out[strings.ToLower(s.Name)] = s
	}
	return out, nil
}

func ValidateStyle(s Style) error {
	name := strings.TrimSpace(s.Name)
	switch {
	case name == "":
		return fmt.Errorf("style name required")
	case s.Mode != ModeScore && s.Mode != ModeHumanRandom && s.Mode != ModeMinPolicy:
		return fmt.Errorf("style %s: unknown mode %q", name, s.Mode)
	case s.Weights.MaxPointsLost <= 0:
		return fmt.Errorf("style %s: maxPointsLost must be > 0: %f", name, s.Weights.MaxPointsLost)
	case s.Weights.MinVisits < 0:
		return fmt.Errorf("style %s: minVisits must be >= 0: %d", name, s.Weights.MinVisits)
	}
	if (s.Mode == ModeHumanRandom || s.Mode == ModeMinPolicy) && strings.TrimSpace(s.HumanProfile) == "" {
		return fmt.Errorf("style %s: mode %s requires a humanProfile", name, s.Mode)
	}
	return nil
}
