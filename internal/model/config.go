package model

import "time"

// Config is the complete runtime configuration, loaded by the CLI from
// flags, CONCLAVE_* environment variables, and ~/.conclave/config.yaml.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Council    CouncilConfig    `yaml:"council"`
	Search     SearchConfig     `yaml:"search"`
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
}

// LLMConfig configures the outbound chat-completions client. Any
// OpenAI-compatible endpoint works; OpenRouter is the default because it
// fronts every council member behind one API.
type LLMConfig struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// CouncilConfig selects the models and feature gates for a deliberation turn
type CouncilConfig struct {
	Models     []string `yaml:"models"`      // Stage 1/2 council members
	Chairman   string   `yaml:"chairman"`    // Stage 3 synthesizer
	Scrubber   string   `yaml:"scrubber"`    // Phase 0 + style-neutralization model
	Verifier   string   `yaml:"verifier"`    // Stage 2.5 query generation and adjudication
	TitleModel string   `yaml:"title_model"` // conversation title side effect

	Phase0Enabled  bool `yaml:"phase0_enabled"`
	Stage25Enabled bool `yaml:"stage25_enabled"`

	// ConfidenceThreshold gates Stage 2.5 eligibility (claims from responses
	// declaring strictly more than this). MaxClaims bounds the claim pool.
	ConfidenceThreshold int `yaml:"confidence_threshold"`
	MaxClaims           int `yaml:"max_claims"`
}

// SearchConfig configures the Stage 2.5 search backend
type SearchConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	MaxResults        int           `yaml:"max_results"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	HTTPProxy         string        `yaml:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy"`
}

// HeuristicsConfig holds the tunable constants of the consensus fallback.
// These are configuration, not algorithmic invariants.
type HeuristicsConfig struct {
	OverlapThreshold    float64 `yaml:"overlap_threshold"`    // claim overlap ratio for Consensus
	ConsensusConfidence float64 `yaml:"consensus_confidence"` // mean confidence floor for Consensus
	UncertainConfidence float64 `yaml:"uncertain_confidence"` // below this the verdict is Uncertain outright
	SplitConfidence     float64 `yaml:"split_confidence"`     // below this a non-consensus turn is Uncertain, not Split
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DataConfig configures on-disk state
type DataConfig struct {
	Dir string `yaml:"dir"` // conversation store root
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:   "https://openrouter.ai/api/v1",
			Timeout:   120 * time.Second,
			MaxTokens: 4096,
		},
		Council: CouncilConfig{
			Models: []string{
				"openai/gpt-5.1",
				"google/gemini-3-pro-preview",
				"anthropic/claude-sonnet-4.5",
				"x-ai/grok-4",
			},
			Chairman:            "google/gemini-3-pro-preview",
			Scrubber:            "google/gemini-2.5-flash",
			Verifier:            "google/gemini-2.5-flash",
			TitleModel:          "google/gemini-2.5-flash",
			Phase0Enabled:       true,
			Stage25Enabled:      true,
			ConfidenceThreshold: 75,
			MaxClaims:           4,
		},
		Search: SearchConfig{
			BaseURL:           "https://api.tavily.com/search",
			MaxResults:        3,
			Timeout:           15 * time.Second,
			CacheTTL:          15 * time.Minute,
			RequestsPerSecond: 2,
		},
		Heuristics: HeuristicsConfig{
			OverlapThreshold:    0.5,
			ConsensusConfidence: 65,
			UncertainConfidence: 50,
			SplitConfidence:     55,
		},
		Server: ServerConfig{
			Port: 8001,
		},
		Data: DataConfig{
			Dir: "data/conversations",
		},
	}
}
