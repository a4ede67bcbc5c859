package model

import "time"

// Config is the full configuration surface for the pipeline.
// All thresholds live here, never in code.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Taste     TasteConfig     `yaml:"taste" mapstructure:"taste"`
	Critic    CriticConfig    `yaml:"critic" mapstructure:"critic"`
	Evolution EvolutionConfig `yaml:"evolution" mapstructure:"evolution"`
	Context   ContextConfig   `yaml:"context" mapstructure:"context"`
	Feedback  FeedbackConfig  `yaml:"feedback" mapstructure:"feedback"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
}

// StoreConfig configures the persistent vector store.
type StoreConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`             // Directory for the vector index
	Collection string `yaml:"collection" mapstructure:"collection"` // Feedback collection name
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // "fastembed" or "openai"
	Model    string `yaml:"model" mapstructure:"model"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"` // openai provider only
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
}

// TasteConfig holds the taste filter thresholds.
type TasteConfig struct {
	DiscardThreshold  float64 `yaml:"discard_threshold" mapstructure:"discard_threshold"`
	FlagThreshold     float64 `yaml:"flag_threshold" mapstructure:"flag_threshold"`
	BoostThreshold    float64 `yaml:"boost_threshold" mapstructure:"boost_threshold"`
	PositiveEchoBoost float64 `yaml:"positive_echo_boost" mapstructure:"positive_echo_boost"`
}

// CriticConfig holds the truth critic's selection and call parameters.
type CriticConfig struct {
	Provider          string        `yaml:"provider" mapstructure:"provider"`
	Model             string        `yaml:"model" mapstructure:"model"`
	APIKey            string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	ReviewThreshold   float64       `yaml:"review_threshold" mapstructure:"review_threshold"`
	MaxEntitiesPerRun int           `yaml:"max_entities_per_run" mapstructure:"max_entities_per_run"`
	Temperature       float32       `yaml:"temperature" mapstructure:"temperature"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CallsPerSecond    float64       `yaml:"calls_per_second" mapstructure:"calls_per_second"`
}

// EvolutionConfig holds the claim evolution similarity bands.
type EvolutionConfig struct {
	DuplicateThreshold float64 `yaml:"duplicate_threshold" mapstructure:"duplicate_threshold"`
	RelatedThreshold   float64 `yaml:"related_threshold" mapstructure:"related_threshold"`
}

// ContextConfig holds the dynamic example injection parameters.
type ContextConfig struct {
	RejectExamples int     `yaml:"reject_examples" mapstructure:"reject_examples"`
	AcceptExamples int     `yaml:"accept_examples" mapstructure:"accept_examples"`
	MinSimilarity  float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
}

// FeedbackConfig holds the durable queue and background processor settings.
type FeedbackConfig struct {
	DBPath       string        `yaml:"db_path" mapstructure:"db_path"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"` // 1 = no retry
	StopTimeout  time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout"`
}

// HistoryConfig configures the channel-history collaborator.
type HistoryConfig struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:       "~/.winnow/taste",
			Collection: "feedback",
		},
		Embedding: EmbeddingConfig{
			Provider: "fastembed",
			Model:    "BAAI/bge-small-en-v1.5",
		},
		Taste: TasteConfig{
			DiscardThreshold:  0.95,
			FlagThreshold:     0.80,
			BoostThreshold:    0.95,
			PositiveEchoBoost: 2.0,
		},
		Critic: CriticConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			ReviewThreshold:   7.0,
			MaxEntitiesPerRun: 10,
			Temperature:       0.3,
			Timeout:           30 * time.Second,
			CallsPerSecond:    2,
		},
		Evolution: EvolutionConfig{
			DuplicateThreshold: 0.95,
			RelatedThreshold:   0.85,
		},
		Context: ContextConfig{
			RejectExamples: 3,
			AcceptExamples: 2,
			MinSimilarity:  0.30,
		},
		Feedback: FeedbackConfig{
			DBPath:       "~/.winnow/feedback.db",
			PollInterval: 5 * time.Second,
			BatchSize:    20,
			MaxAttempts:  1,
			StopTimeout:  10 * time.Second,
		},
		History: HistoryConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
	}
}
