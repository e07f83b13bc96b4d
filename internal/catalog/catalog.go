// Package catalog loads and validates the principle catalog: the weighted
// strategic principles and category thresholds every ticket is scored against.
// A Catalog is loaded once per run and treated as read-only afterwards.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/steve/internal/schema"
)

// DefaultMatchThreshold is the principle score a ticket must exceed for the
// principle to count as matched.
const DefaultMatchThreshold = 10.0

// ErrEmptyCatalog is wrapped by the ConfigError returned for a catalog with no principles.
var ErrEmptyCatalog = errors.New("catalog has no principles")

//go:embed default.yaml
var defaultYAML []byte

// ConfigError reports a malformed or missing principle/threshold configuration.
// It is fatal: no scoring may begin once it is returned.
type ConfigError struct {
	Source string
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("catalog: %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("catalog: %s: %s: %v", e.Source, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Catalog is the immutable scoring configuration for one run.
type Catalog struct {
	Principles     []schema.Principle
	Thresholds     schema.Thresholds
	MatchThreshold float64
	// Baseline is added to every ticket's raw score before the final clamp.
	// Zero disables it.
	Baseline float64
	Source   string
}

// rawCatalog mirrors the YAML layout. Pointers distinguish "absent" from zero.
type rawCatalog struct {
	Principles []rawPrinciple `yaml:"principles"`
	Thresholds *struct {
		CoreValue        *float64 `yaml:"core_value"`
		StrategicEnabler *float64 `yaml:"strategic_enabler"`
		Drift            *float64 `yaml:"drift"`
	} `yaml:"thresholds"`
	Scoring struct {
		MatchThreshold *float64 `yaml:"match_threshold"`
		Baseline       float64  `yaml:"baseline"`
	} `yaml:"scoring"`
}

type rawPrinciple struct {
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description"`
	Keywords          []string `yaml:"keywords"`
	HighValueKeywords []string `yaml:"high_value_keywords"`
	Weight            *float64 `yaml:"weight"`
}

// Load reads and validates the catalog file at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: err}
	}
	defer f.Close()
	return Parse(f, path)
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(bytes.NewReader(defaultYAML), "builtin")
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in catalog invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a catalog from r. source names the input in errors.
func Parse(r io.Reader, source string) (*Catalog, error) {
	var raw rawCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ConfigError{Source: source, Err: ErrEmptyCatalog}
		}
		return nil, &ConfigError{Source: source, Err: fmt.Errorf("parse: %w", err)}
	}

	c := &Catalog{
		MatchThreshold: DefaultMatchThreshold,
		Baseline:       raw.Scoring.Baseline,
		Source:         source,
	}
	if raw.Scoring.MatchThreshold != nil {
		c.MatchThreshold = *raw.Scoring.MatchThreshold
	}

	if len(raw.Principles) == 0 {
		return nil, &ConfigError{Source: source, Field: "principles", Err: ErrEmptyCatalog}
	}
	seen := make(map[string]bool, len(raw.Principles))
	for i, rp := range raw.Principles {
		field := fmt.Sprintf("principles[%d]", i)
		name := strings.TrimSpace(rp.Name)
		if name == "" {
			return nil, &ConfigError{Source: source, Field: field + ".name", Err: errors.New("is required")}
		}
		if seen[strings.ToLower(name)] {
			return nil, &ConfigError{Source: source, Field: field + ".name", Err: fmt.Errorf("duplicate principle %q", name)}
		}
		seen[strings.ToLower(name)] = true

		weight := 1.0
		if rp.Weight != nil {
			weight = *rp.Weight
		}
		if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
			return nil, &ConfigError{Source: source, Field: field + ".weight", Err: fmt.Errorf("must be a positive number, got %v", weight)}
		}
		c.Principles = append(c.Principles, schema.Principle{
			Name:              name,
			Description:       rp.Description,
			Keywords:          cleanKeywords(rp.Keywords),
			HighValueKeywords: cleanKeywords(rp.HighValueKeywords),
			Weight:            weight,
		})
	}

	if raw.Thresholds == nil {
		return nil, &ConfigError{Source: source, Field: "thresholds", Err: errors.New("is required")}
	}
	required := []struct {
		name string
		v    *float64
	}{
		{"core_value", raw.Thresholds.CoreValue},
		{"strategic_enabler", raw.Thresholds.StrategicEnabler},
		{"drift", raw.Thresholds.Drift},
	}
	for _, r := range required {
		if r.v == nil {
			return nil, &ConfigError{Source: source, Field: "thresholds." + r.name, Err: errors.New("is required")}
		}
	}
	c.Thresholds = schema.Thresholds{
		CoreValue:        *raw.Thresholds.CoreValue,
		StrategicEnabler: *raw.Thresholds.StrategicEnabler,
		Drift:            *raw.Thresholds.Drift,
	}
	if err := ValidateThresholds(c.Thresholds); err != nil {
		return nil, &ConfigError{Source: source, Field: "thresholds", Err: err}
	}
	return c, nil
}

// ValidateThresholds enforces core_value > strategic_enabler > drift >= 0.
func ValidateThresholds(t schema.Thresholds) error {
	if !(t.CoreValue > t.StrategicEnabler && t.StrategicEnabler > t.Drift) {
		return fmt.Errorf("must be strictly decreasing (core_value %v > strategic_enabler %v > drift %v)",
			t.CoreValue, t.StrategicEnabler, t.Drift)
	}
	if t.Drift < 0 {
		return fmt.Errorf("drift must be >= 0, got %v", t.Drift)
	}
	return nil
}

// cleanKeywords lowercases, trims, and drops empty or duplicate keywords.
// An empty keyword would match every ticket as a substring.
func cleanKeywords(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// HighestWeight returns the principle with the largest weight; the earliest
// wins on ties.
func (c *Catalog) HighestWeight() schema.Principle {
	best := c.Principles[0]
	for _, p := range c.Principles[1:] {
		if p.Weight > best.Weight {
			best = p
		}
	}
	return best
}
