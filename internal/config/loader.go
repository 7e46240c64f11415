package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued tunables with the documented defaults.
func ApplyDefaults(cfg *Config) {
	r := &cfg.Relatedness
	if r.Gamma == 0 {
		r.Gamma = 0.55
	}
	if r.Epsilon == 0 {
		r.Epsilon = 1e-6
	}
	if r.TopK == 0 {
		r.TopK = 200
	}
	if r.AlphaCitation == 0 {
		r.AlphaCitation = 0.45
	}
	if r.AlphaHierarchy == 0 {
		r.AlphaHierarchy = 0.20
	}
	if r.AlphaTerm == 0 {
		r.AlphaTerm = 0.20
	}
	if r.AlphaSemantic == 0 {
		r.AlphaSemantic = 0.05
	}
	if r.Radius == 0 {
		r.Radius = 2
	}
	if r.MaxNodes == 0 {
		r.MaxNodes = 5000
	}
	if r.MaxEdges == 0 {
		r.MaxEdges = 40_000
	}
	if r.TermLimitPerTerm == 0 {
		r.TermLimitPerTerm = 200
	}
	if r.SemanticK == 0 {
		r.SemanticK = 80
	}
	if r.BaselineIterations == 0 {
		r.BaselineIterations = 50
	}

	s := &cfg.Search
	if s.LexicalTop == 0 {
		s.LexicalTop = 200
	}
	if s.SeedTop == 0 {
		s.SeedTop = 12
	}
	if s.SeedMultiThreshold == 0 {
		s.SeedMultiThreshold = 3
	}
	if s.WeightGraph == 0 {
		s.WeightGraph = 0.65
	}
	if s.WeightLexical == 0 {
		s.WeightLexical = 0.35
	}
	if s.CacheTTLSeconds == 0 {
		s.CacheTTLSeconds = 600
	}
	if s.CacheCapacity == 0 {
		s.CacheCapacity = 2000
	}

	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embeddings.Dim == 0 {
		cfg.Embeddings.Dim = 384
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Database.DSN == "" {
		errs = append(errs, errors.New("config: database.dsn must be set"))
	}
	if len(cfg.Corpora) == 0 {
		errs = append(errs, errors.New("config: at least one corpus must be configured"))
	}

	defaults := 0
	seen := make(map[string]struct{}, len(cfg.Corpora))
	for i, c := range cfg.Corpora {
		if c.ID == "" {
			errs = append(errs, fmt.Errorf("config: corpora[%d]: id must be set", i))
			continue
		}
		if _, dup := seen[c.ID]; dup {
			errs = append(errs, fmt.Errorf("config: corpora[%d]: duplicate id %q", i, c.ID))
		}
		seen[c.ID] = struct{}{}
		if c.Default {
			defaults++
		}
	}
	if defaults > 1 {
		errs = append(errs, errors.New("config: at most one corpus may be marked default"))
	}

	r := cfg.Relatedness
	if r.Gamma <= 0 || r.Gamma >= 1 {
		errs = append(errs, fmt.Errorf("config: relatedness.gamma must be in (0, 1), got %v", r.Gamma))
	}
	alphaSum := r.AlphaCitation + r.AlphaHierarchy + r.AlphaTerm + r.AlphaSemantic
	if alphaSum <= 0 {
		errs = append(errs, errors.New("config: relatedness view weights must sum to a positive value"))
	}

	s := cfg.Search
	if s.WeightGraph < 0 || s.WeightLexical < 0 {
		errs = append(errs, errors.New("config: search blend weights must be non-negative"))
	}

	return errors.Join(errs...)
}
