package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Duration wraps time.Duration so YAML values like "5m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Sources        Sources        `yaml:"sources"`
	Processing     Processing     `yaml:"processing"`
	Prefilter      Prefilter      `yaml:"prefilter"`
	Classification Classification `yaml:"classification"`
	Output         Output         `yaml:"output"`
	Logging        Logging        `yaml:"logging"`
}

type Sources struct {
	ProcessingPriority []string          `yaml:"processing_priority"`
	MuckRock           MuckRockConfig    `yaml:"muckrock"`
	AgencyLogs         AgencyLogsConfig  `yaml:"agency_logs"`
	ReadingRooms       ReadingRoomConfig `yaml:"reading_rooms"`
	FOIAGov            FOIAGovConfig     `yaml:"foia_gov_annual"`
}

// RateBudget is a per-source request budget. Sources without an
// elevated-access credential run at a conservative 1 rps floor.
type RateBudget struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type MuckRockConfig struct {
	Enabled     bool       `yaml:"enabled"`
	BaseURL     string     `yaml:"base_url"`
	APITokenEnv string     `yaml:"api_token_env"`
	MaxRequests int        `yaml:"max_requests"`
	CutoffDate  string     `yaml:"cutoff_date"`
	Rate        RateBudget `yaml:"rate"`
}

type AgencyEndpoint struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type AgencyLogsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Agencies   []AgencyEndpoint `yaml:"agencies"`
	CutoffDate string           `yaml:"cutoff_date"`
	Rate       RateBudget       `yaml:"rate"`
}

type ReadingRoomEndpoint struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	BaseURL    string `yaml:"base_url"`
	Enabled    bool   `yaml:"enabled"`
	Pagination string `yaml:"pagination"` // "page", "offset", or "rss"
	PageParam  string `yaml:"page_param"`
	MaxPages   int    `yaml:"max_pages"`
}

type ReadingRoomConfig struct {
	Enabled    bool                  `yaml:"enabled"`
	Endpoints  []ReadingRoomEndpoint `yaml:"endpoints"`
	CutoffDate string                `yaml:"cutoff_date"`
	Rate       RateBudget            `yaml:"rate"`
}

type FOIAGovConfig struct {
	Enabled bool       `yaml:"enabled"`
	BaseURL string     `yaml:"base_url"`
	Years   []int      `yaml:"years"`
	Rate    RateBudget `yaml:"rate"`
}

type Processing struct {
	Extraction Extraction  `yaml:"extraction"`
	Dedupe     Dedupe      `yaml:"dedupe"`
	Admin      AdminConfig `yaml:"admin"`
}

type Extraction struct {
	MinTextChars int    `yaml:"min_text_chars"`
	PDFToTextBin string `yaml:"pdftotext_bin"`
	TesseractBin string `yaml:"tesseract_bin"`
}

type Dedupe struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ShingleSize         int     `yaml:"shingle_size"`
}

type AdminConfig struct {
	DatasetURL       string `yaml:"dataset_url"`
	DatasetURLEnv    string `yaml:"dataset_url_env"`
	CachePath        string `yaml:"cache_path"`
	CachePathEnv     string `yaml:"cache_path_env"`
	TransitionMonths int    `yaml:"transition_months"`
}

type Prefilter struct {
	KeywordThreshold   int     `yaml:"keyword_threshold"`
	UseEmbeddings      bool    `yaml:"use_embeddings"`
	EmbeddingThreshold float64 `yaml:"embedding_threshold"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	OllamaURL          string  `yaml:"ollama_url"`
}

type Classification struct {
	Provider         string        `yaml:"provider"`
	Model            string        `yaml:"model"`
	OllamaURL        string        `yaml:"ollama_url"`
	OpenAIModel      string        `yaml:"openai_model"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	SchemaVersion    int           `yaml:"schema_version"`
	MaxSchemaRetries int           `yaml:"max_schema_retries"`
	MaxElapsed       Duration      `yaml:"max_elapsed"`
	Workers          int           `yaml:"workers"`
	MaxCharsPerDoc   int           `yaml:"max_chars_per_doc"`
	Rate             RateBudget    `yaml:"rate"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for foialens.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "foialens")
}

// DataDir returns the XDG data directory for foialens.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "foialens")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/foialens/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'foialens init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: Sources{
			ProcessingPriority: []string{"muckrock", "agency_logs", "reading_rooms", "foia_gov_annual"},
			MuckRock: MuckRockConfig{
				BaseURL:     "https://www.muckrock.com/api_v2",
				APITokenEnv: "MUCKROCK_API_TOKEN",
				MaxRequests: 1000,
			},
		},
		Processing: Processing{
			Extraction: Extraction{
				MinTextChars: 1000,
				PDFToTextBin: "pdftotext",
				TesseractBin: "tesseract",
			},
			Dedupe: Dedupe{
				SimilarityThreshold: 0.9,
				ShingleSize:         4,
			},
			Admin: AdminConfig{
				DatasetURLEnv: "FOIALENS_ADMIN_DATASET_URL",
				CachePathEnv:  "FOIALENS_ADMIN_CACHE_PATH",
			},
		},
		Prefilter: Prefilter{
			KeywordThreshold:   1,
			EmbeddingThreshold: 0.78,
			EmbeddingModel:     "nomic-embed-text",
			OllamaURL:          "http://localhost:11434",
		},
		Classification: Classification{
			Provider:         "openai",
			Model:            "qwen2.5:7b",
			OllamaURL:        "http://localhost:11434",
			OpenAIModel:      "gpt-4o-mini",
			APIKeyEnv:        "OPENAI_API_KEY",
			SchemaVersion:    1,
			MaxSchemaRetries: 3,
			MaxElapsed:       Duration(5 * time.Minute),
			Workers:          4,
			MaxCharsPerDoc:   20000,
			Rate:             RateBudget{RequestsPerSecond: 2, Burst: 4},
		},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// SourceRate returns the configured rate budget for a source name. Unknown
// names get a zero budget, which the limiter clamps to the 1 rps floor.
func (c *Config) SourceRate(name string) RateBudget {
	switch name {
	case "muckrock":
		return c.Sources.MuckRock.Rate
	case "agency_logs":
		return c.Sources.AgencyLogs.Rate
	case "reading_rooms":
		return c.Sources.ReadingRooms.Rate
	case "foia_gov_annual":
		return c.Sources.FOIAGov.Rate
	case "judge":
		return c.Classification.Rate
	}
	return RateBudget{}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
