package requestlog

import "fmt"

// Config defines settings for request log storage and rotation.
type Config struct {
	// Backend selects the store type: "jsonl", "rotating" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the log store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
	// Workers is the number of concurrent writers used by the Recorder.
	Workers int `json:"workers"`
	// PromptSnapshot stores the prompt alongside each record when true.
	PromptSnapshot bool `json:"prompt_snapshot"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "requests.log"
	}
	if c.Backend == "rotating" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 100
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "rotating", "sqlite":
	default:
		return fmt.Errorf("unknown request log backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("request_log.path is required")
	}
	return nil
}

// Open creates the Store selected by the configuration.
func Open(c Config) (Store, error) {
	switch c.Backend {
	case "jsonl":
		return NewJSONLStore(c.Path)
	case "rotating":
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	default:
		return nil, fmt.Errorf("unknown request log backend %s", c.Backend)
	}
}
