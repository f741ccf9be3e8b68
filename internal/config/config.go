package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the harvester.
type Config struct {
	APIBaseURL         string `mapstructure:"API_BASE_URL"`
	SearchURL          string `mapstructure:"SEARCH_URL"`
	SearchQuery        string `mapstructure:"SEARCH_QUERY"`
	SearchDepartmentID int    `mapstructure:"SEARCH_DEPARTMENT_ID"`
	PageURLTemplate    string `mapstructure:"PAGE_URL_TEMPLATE"`

	ImageRootDir   string `mapstructure:"IMAGE_ROOT_DIR"`
	OutputPath     string `mapstructure:"OUTPUT_PATH"`
	CheckpointPath string `mapstructure:"CHECKPOINT_PATH"`

	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RunName     string `mapstructure:"RUN_NAME"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	RedisTTLHrs int    `mapstructure:"REDIS_TTL_HOURS"`
	ServerPort  string `mapstructure:"SERVER_PORT"`

	StartOffset int `mapstructure:"START_OFFSET"`
	FlushEvery  int `mapstructure:"FLUSH_EVERY"`
	Limit       int `mapstructure:"LIMIT"`

	NavTimeout     int `mapstructure:"NAV_TIMEOUT"`      // seconds
	SettleMs       int `mapstructure:"SETTLE_MS"`        // post-load render settle
	TabTimeout     int `mapstructure:"TAB_TIMEOUT"`      // seconds, per tab
	TabPollMs      int `mapstructure:"TAB_POLL_MS"`      // quiescence poll interval
	TabStableReads int `mapstructure:"TAB_STABLE_READS"` // identical reads = stable
	FetchTimeout   int `mapstructure:"FETCH_TIMEOUT"`    // seconds, feed + images
	MaxRetries     int `mapstructure:"MAX_RETRIES"`
	RetryWaitMs    int `mapstructure:"RETRY_WAIT_MS"`
	PoliteDelayMs  int `mapstructure:"POLITE_DELAY_MS"`

	MinDescLen          int `mapstructure:"MIN_DESC_LEN"`
	MinDescWords        int `mapstructure:"MIN_DESC_WORDS"`
	MaxAdditionalImages int `mapstructure:"MAX_ADDITIONAL_IMAGES"`

	ProxyURL string `mapstructure:"PROXY_URL"`

	// TabNames is parsed from TAB_NAMES, "|" separated because the labels
	// themselves contain commas.
	TabNames []string `mapstructure:"-"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = viper.ReadInConfig()

	viper.SetDefault("API_BASE_URL", "https://collectionapi.metmuseum.org/public/collection/v1")
	viper.SetDefault("SEARCH_URL", "https://collectionapi.metmuseum.org/public/collection/v1/search")
	viper.SetDefault("SEARCH_QUERY", "sword")
	viper.SetDefault("SEARCH_DEPARTMENT_ID", 4)
	viper.SetDefault("PAGE_URL_TEMPLATE", "https://www.metmuseum.org/art/collection/search/%d")

	viper.SetDefault("IMAGE_ROOT_DIR", "downloaded_images")
	viper.SetDefault("OUTPUT_PATH", "harvest_records.jsonl")
	viper.SetDefault("CHECKPOINT_PATH", "harvest_checkpoint.json")

	viper.SetDefault("RUN_NAME", "default")
	viper.SetDefault("REDIS_TTL_HOURS", 30*24)
	viper.SetDefault("SERVER_PORT", "8080")

	viper.SetDefault("START_OFFSET", 0)
	viper.SetDefault("FLUSH_EVERY", 25)
	viper.SetDefault("LIMIT", 0)

	viper.SetDefault("NAV_TIMEOUT", 90)
	viper.SetDefault("SETTLE_MS", 1500)
	viper.SetDefault("TAB_TIMEOUT", 5)
	viper.SetDefault("TAB_POLL_MS", 200)
	viper.SetDefault("TAB_STABLE_READS", 2)
	viper.SetDefault("FETCH_TIMEOUT", 20)
	viper.SetDefault("MAX_RETRIES", 2)
	viper.SetDefault("RETRY_WAIT_MS", 500)
	viper.SetDefault("POLITE_DELAY_MS", 500)

	viper.SetDefault("MIN_DESC_LEN", 1)
	viper.SetDefault("MIN_DESC_WORDS", 30)
	viper.SetDefault("MAX_ADDITIONAL_IMAGES", 8)

	viper.SetDefault("TAB_NAMES",
		"Overview|Signatures, Inscriptions, and Markings|Provenance|References")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	for _, name := range strings.Split(viper.GetString("TAB_NAMES"), "|") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.TabNames = append(cfg.TabNames, name)
		}
	}
	return &cfg, nil
}
