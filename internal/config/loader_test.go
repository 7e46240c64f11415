package config

import (
	"strings"
	"testing"
)

const minimalYAML = `
database:
  dsn: postgres://localhost:5432/taxiv
corpora:
  - id: ITAA1997
    title: Income Tax Assessment Act 1997
    default: true
`

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	r := cfg.Relatedness
	if r.Gamma != 0.55 {
		t.Errorf("Gamma = %v, want 0.55", r.Gamma)
	}
	if r.Epsilon != 1e-6 {
		t.Errorf("Epsilon = %v, want 1e-6", r.Epsilon)
	}
	if r.TopK != 200 {
		t.Errorf("TopK = %v, want 200", r.TopK)
	}
	if r.AlphaCitation != 0.45 || r.AlphaHierarchy != 0.20 || r.AlphaTerm != 0.20 || r.AlphaSemantic != 0.05 {
		t.Errorf("alphas = %v/%v/%v/%v, want 0.45/0.20/0.20/0.05",
			r.AlphaCitation, r.AlphaHierarchy, r.AlphaTerm, r.AlphaSemantic)
	}
	if r.Radius != 2 || r.MaxNodes != 5000 || r.MaxEdges != 40_000 {
		t.Errorf("subgraph caps = %v/%v/%v", r.Radius, r.MaxNodes, r.MaxEdges)
	}
	if r.SemanticK != 80 || r.TermLimitPerTerm != 200 || r.BaselineIterations != 50 {
		t.Errorf("knn/term/iters = %v/%v/%v", r.SemanticK, r.TermLimitPerTerm, r.BaselineIterations)
	}

	s := cfg.Search
	if s.LexicalTop != 200 || s.SeedTop != 12 || s.SeedMultiThreshold != 3 {
		t.Errorf("seeding = %v/%v/%v", s.LexicalTop, s.SeedTop, s.SeedMultiThreshold)
	}
	if s.WeightGraph != 0.65 || s.WeightLexical != 0.35 {
		t.Errorf("blend = %v/%v", s.WeightGraph, s.WeightLexical)
	}
	if s.CacheTTLSeconds != 600 || s.CacheCapacity != 2000 {
		t.Errorf("cache = %v/%v", s.CacheTTLSeconds, s.CacheCapacity)
	}

	if cfg.Embeddings.Dim != 384 {
		t.Errorf("Embeddings.Dim = %v, want 384", cfg.Embeddings.Dim)
	}
}

func TestLoadFromReader_OverridesSurvive(t *testing.T) {
	yaml := minimalYAML + `
relatedness:
  gamma: 0.5
  alpha_semantic: 0.25
`
	cfg, err := LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Relatedness.Gamma != 0.5 {
		t.Errorf("Gamma = %v, want 0.5", cfg.Relatedness.Gamma)
	}
	if cfg.Relatedness.AlphaSemantic != 0.25 {
		t.Errorf("AlphaSemantic = %v, want 0.25", cfg.Relatedness.AlphaSemantic)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	if _, err := LoadFromReader(strings.NewReader(minimalYAML + "\nbogus: 1\n")); err == nil {
		t.Error("unknown top-level field accepted")
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing dsn", `
corpora:
  - id: X
`, "database.dsn"},
		{"no corpora", `
database:
  dsn: postgres://x
`, "at least one corpus"},
		{"duplicate corpus", `
database:
  dsn: postgres://x
corpora:
  - id: A
  - id: A
`, "duplicate id"},
		{"two defaults", `
database:
  dsn: postgres://x
corpora:
  - id: A
    default: true
  - id: B
    default: true
`, "at most one corpus"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("LoadFromReader() error = nil, want validation failure")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
