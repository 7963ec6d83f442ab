package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models taskline.yml.
type Config struct {
	Org struct {
		Name string `yaml:"name"`
	} `yaml:"org"`
	Database struct {
		// File is the SQLite path, relative to the workspace. Empty means
		// .taskline/taskline.db.
		File string `yaml:"file"`
	} `yaml:"database"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		Issuer   string `yaml:"issuer"`
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`
	Tasks struct {
		IDPrefix              string `yaml:"id_prefix"`
		StrictTransitions     bool   `yaml:"strict_transitions"`
		AcceptLegacyCompleted bool   `yaml:"accept_legacy_completed"`
	} `yaml:"tasks"`
	Scoring Scoring `yaml:"scoring"`
}

// Scoring holds the performance weights. Each weight set must sum to 1.
type Scoring struct {
	Employee struct {
		Completion   float64 `yaml:"completion"`
		Quality      float64 `yaml:"quality"`
		Timeliness   float64 `yaml:"timeliness"`
		Productivity float64 `yaml:"productivity"`
	} `yaml:"employee"`
	Manager struct {
		Completion float64 `yaml:"completion"`
		LowRework  float64 `yaml:"low_rework"`
		Approval   float64 `yaml:"approval"`
		Stability  float64 `yaml:"stability"`
	} `yaml:"manager"`
	CompletedTarget int `yaml:"completed_target"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Org.Name) == "" {
		return fmt.Errorf("config.org.name is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Tasks.IDPrefix) == "" {
		return fmt.Errorf("config.tasks.id_prefix is required")
	}
	e := c.Scoring.Employee
	if !weightsSumToOne(e.Completion, e.Quality, e.Timeliness, e.Productivity) {
		return fmt.Errorf("config.scoring.employee weights must sum to 1")
	}
	m := c.Scoring.Manager
	if !weightsSumToOne(m.Completion, m.LowRework, m.Approval, m.Stability) {
		return fmt.Errorf("config.scoring.manager weights must sum to 1")
	}
	if c.Scoring.CompletedTarget <= 0 {
		return fmt.Errorf("config.scoring.completed_target must be positive")
	}
	return nil
}

// TokenTTL parses auth.token_ttl.
func (c *Config) TokenTTL() (time.Duration, error) {
	if c.Auth.TokenTTL == "" {
		return 0, fmt.Errorf("config.auth.token_ttl is required")
	}
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("config.auth.token_ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config.auth.token_ttl must be positive")
	}
	return d, nil
}

func weightsSumToOne(ws ...float64) bool {
	var sum float64
	for _, w := range ws {
		if w < 0 {
			return false
		}
		sum += w
	}
	return sum > 0.999 && sum < 1.001
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgName string) string {
	return fmt.Sprintf(defaultTemplate, orgName)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault("default")), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `org:
  name: %s

database:
  file: ""

server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  issuer: taskline
  token_ttl: 8h

tasks:
  id_prefix: TSK-
  strict_transitions: false
  accept_legacy_completed: true

scoring:
  employee:
    completion: 0.40
    quality: 0.25
    timeliness: 0.20
    productivity: 0.15
  manager:
    completion: 0.35
    low_rework: 0.30
    approval: 0.20
    stability: 0.15
  completed_target: 10
`
