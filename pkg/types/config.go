package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "review-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// RetrievalConfig holds settings for the document retrieval collaborator.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the retrieval service endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is an optional key for the retrieval service.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxResults is the maximum number of hits requested per query (default 50).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// CacheConfig holds settings for the results cache.
type CacheConfig struct {
	// Enabled controls whether stage outputs are memoized (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ForceRecompute bypasses cached entries while still storing fresh ones.
	ForceRecompute bool `json:"force_recompute" yaml:"force_recompute"`
}

// ReviewConfig holds settings for the review orchestrator.
type ReviewConfig struct {
	// DataDir is the base directory for the review database and exports
	// (contains review.db, reports/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxWorkers bounds the per-paper worker pool (default 4).
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`

	// PaperTimeout bounds each per-paper evaluation or scoring call
	// (default 60s). A timed-out paper is marked uncertain, not fatal.
	PaperTimeout time.Duration `json:"paper_timeout" yaml:"paper_timeout"`

	// MinAbstractChars is the minimum abstract length the initial filter
	// accepts (default 200).
	MinAbstractChars int `json:"min_abstract_chars" yaml:"min_abstract_chars"`

	// GateThreshold is the composite score below which a paper is marked as
	// not passing the quality gate (default 0.5).
	GateThreshold float64 `json:"gate_threshold" yaml:"gate_threshold"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`
	Inference AIConfig        `json:"inference" yaml:"inference"`
	Cache     CacheConfig     `json:"cache" yaml:"cache"`
	Review    ReviewConfig    `json:"review" yaml:"review"`
}

// Defaults fills unset fields with their documented default values.
func (c *PipelineConfig) Defaults() {
	if c.Retrieval.Timeout <= 0 {
		c.Retrieval.Timeout = 30 * time.Second
	}
	if c.Retrieval.UserAgent == "" {
		c.Retrieval.UserAgent = "review-engine/0.1"
	}
	if c.Retrieval.MaxResults <= 0 {
		c.Retrieval.MaxResults = 50
	}
	if c.Inference.MaxRetries <= 0 {
		c.Inference.MaxRetries = 3
	}
	if c.Review.DataDir == "" {
		c.Review.DataDir = "review"
	}
	if c.Review.MaxWorkers <= 0 {
		c.Review.MaxWorkers = 4
	}
	if c.Review.PaperTimeout <= 0 {
		c.Review.PaperTimeout = 60 * time.Second
	}
	if c.Review.MinAbstractChars <= 0 {
		c.Review.MinAbstractChars = 200
	}
	if c.Review.GateThreshold <= 0 {
		c.Review.GateThreshold = 0.5
	}
}
