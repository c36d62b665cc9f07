package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type ExtractionPrompts struct {
	Nodes string `toml:"nodes"`
	Edges string `toml:"edges"`
}

type DeduplicationPrompts struct {
	Nodes string `toml:"nodes"`
	Edges string `toml:"edges"`
}

type TemporalPrompts struct {
	Contradiction string `toml:"contradiction"`
}

type SummaryPrompts struct {
	Nodes         string `toml:"nodes"`
	Communities   string `toml:"communities"`
	CommunityName string `toml:"community_name"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	MaxRetries     int    `toml:"max_retries"`
}

type GraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// DedupeConfig holds the three-band thresholds and the blend weights for the
// deduplication resolver. These are policy knobs, not structural constants.
type DedupeConfig struct {
	MergeThreshold  float64 `toml:"merge_threshold"`
	ReviewThreshold float64 `toml:"review_threshold"`
	NameWeight      float64 `toml:"name_weight"`
	EmbeddingWeight float64 `toml:"embedding_weight"`
	MaxCandidates   int     `toml:"max_candidates"`
}

type SearchConfig struct {
	RankConstant    int     `toml:"rank_constant"`
	MMRLambda       float64 `toml:"mmr_lambda"`
	BFSMaxDepth     int     `toml:"bfs_max_depth"`
	BFSMaxFrontier  int     `toml:"bfs_max_frontier"`
	SignalTimeoutMS int     `toml:"signal_timeout_ms"`
	CandidateLimit  int     `toml:"candidate_limit"`
}

type ConcurrencyConfig struct {
	ExtractionBudget int `toml:"extraction_budget"`
	BulkIngest       int `toml:"bulk_ingest"`
}

type TemporalConfig struct {
	// Relation types known to hold at most one valid value per
	// (source, target) pair; contradiction checks short-circuit for these.
	SingleValuedRelations []string `toml:"single_valued_relations"`
	// Relation types allowed to point a node at itself.
	ReflexiveRelations []string `toml:"reflexive_relations"`
}

type Config struct {
	Env           string               `toml:"env"`
	LLM           LLMConfig            `toml:"llm"`
	Graph         GraphConfig          `toml:"graph"`
	Extraction    ExtractionPrompts    `toml:"extraction"`
	Deduplication DeduplicationPrompts `toml:"deduplication"`
	Temporal      TemporalPrompts      `toml:"temporal"`
	Summary       SummaryPrompts       `toml:"summary"`
	Dedupe        DedupeConfig         `toml:"dedupe"`
	Search        SearchConfig         `toml:"search"`
	Concurrency   ConcurrencyConfig    `toml:"concurrency"`
	Relations     TemporalConfig       `toml:"relations"`
}

func Default() *Config {
	return &Config{
		Dedupe: DedupeConfig{
			MergeThreshold:  0.9,
			ReviewThreshold: 0.6,
			NameWeight:      0.5,
			EmbeddingWeight: 0.5,
			MaxCandidates:   10,
		},
		Search: SearchConfig{
			RankConstant:    60,
			MMRLambda:       0.5,
			BFSMaxDepth:     3,
			BFSMaxFrontier:  1000,
			SignalTimeoutMS: 10000,
			CandidateLimit:  50,
		},
		Concurrency: ConcurrencyConfig{
			ExtractionBudget: 8,
			BulkIngest:       4,
		},
		LLM: LLMConfig{MaxRetries: 3},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides config values from the environment, which wins over the
// TOML file.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Env, "STRATA_ENV")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.Graph.URI, "GRAPH_URI")
	set(&c.Graph.User, "GRAPH_USER")
	set(&c.Graph.Password, "GRAPH_PASSWORD")
}
