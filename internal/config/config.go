package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Settings holds the tool-level ntuplesub configuration. It describes the
// site (binaries, paths, limits) rather than a particular task.
type Settings struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Merge     MergeConfig     `yaml:"merge"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SchedulerConfig configures the batch system client.
type SchedulerConfig struct {
	SubmitBinary string `yaml:"submit_binary"` // sbatch
	QueryBinary  string `yaml:"query_binary"`  // squeue
	Shell        string `yaml:"shell"`         // used to run generated lines
	LogDir       string `yaml:"log_dir"`       // -o/-e directory, may contain %u
	DefaultQueue string `yaml:"default_queue"`
	DefaultTime  string `yaml:"default_time"`
}

// CatalogConfig configures the data catalog client.
type CatalogConfig struct {
	Binary      string `yaml:"binary"`
	Parallelism int    `yaml:"parallelism"`
	Timeout     string `yaml:"timeout"`
}

// ProxyConfig configures the grid proxy check.
type ProxyConfig struct {
	Binary      string `yaml:"binary"`
	MinLifetime int    `yaml:"min_lifetime"` // seconds
}

// MergeConfig configures hadd job preparation.
type MergeConfig struct {
	FilesPerJob int           `yaml:"files_per_job"`
	Program     string        `yaml:"program"` // used when the summary names none
	Remap       []PrefixRemap `yaml:"remap"`
}

// PrefixRemap rewrites a local storage prefix into a remote-access URL.
type PrefixRemap struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// ExecutionConfig configures the process runner. Child processes inherit
// the full environment unless RestrictEnv limits them to AllowedEnvVars.
type ExecutionConfig struct {
	DefaultTimeout string   `yaml:"default_timeout"`
	RestrictEnv    bool     `yaml:"restrict_env"`
	AllowedEnvVars []string `yaml:"allowed_env_vars"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// DefaultSettings returns the settings used at the PSI tier-3.
func DefaultSettings() *Settings {
	return &Settings{
		Scheduler: SchedulerConfig{
			SubmitBinary: "sbatch",
			QueryBinary:  "squeue",
			Shell:        "sh",
			LogDir:       "/work/%u/test/.slurm",
			DefaultQueue: "standard",
			DefaultTime:  "12:00:00",
		},
		Catalog: CatalogConfig{
			Binary:      "dasgoclient",
			Parallelism: 4,
			Timeout:     "5m",
		},
		Proxy: ProxyConfig{
			Binary:      "voms-proxy-info",
			MinLifetime: 1000,
		},
		Merge: MergeConfig{
			FilesPerJob: 10,
			Program:     "hadd",
			Remap: []PrefixRemap{
				{From: "/pnfs/psi.ch/cms/trivcat/", To: "root://cms-xrd-global.cern.ch//"},
			},
		},
		Execution: ExecutionConfig{
			DefaultTimeout: "2m",
			AllowedEnvVars: []string{
				"PATH", "HOME", "USER", "LOGNAME", "LANG", "LC_ALL", "TMPDIR",
				"X509_USER_PROXY", "X509_CERT_DIR", "X509_VOMS_DIR",
				"CMSSW_BASE", "CMSSW_RELEASE_BASE", "SCRAM_ARCH",
				"SLURM_CONF", "LD_LIBRARY_PATH", "PYTHONPATH",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultSettingsPath returns ~/.ntuplesub.yaml, or "" if HOME is unknown.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ntuplesub.yaml")
}

// Load loads settings from a YAML file. A missing file yields defaults.
// If envFile names an existing dotenv file it is loaded into the process
// environment before NTUPLESUB_* overrides are applied.
func Load(path, envFile string) (*Settings, error) {
	cfg := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// defaults
		default:
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes settings to a YAML file.
func (c *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Settings) applyEnvOverrides() {
	if v := os.Getenv("NTUPLESUB_SUBMIT_BINARY"); v != "" {
		c.Scheduler.SubmitBinary = v
	}
	if v := os.Getenv("NTUPLESUB_QUERY_BINARY"); v != "" {
		c.Scheduler.QueryBinary = v
	}
	if v := os.Getenv("NTUPLESUB_LOG_DIR"); v != "" {
		c.Scheduler.LogDir = v
	}
	if v := os.Getenv("NTUPLESUB_CATALOG_BINARY"); v != "" {
		c.Catalog.Binary = v
	}
	if v := os.Getenv("NTUPLESUB_PROXY_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Proxy.MinLifetime = n
		}
	}
}

// Validate validates the settings.
func (c *Settings) Validate() error {
	if c.Scheduler.SubmitBinary == "" || c.Scheduler.QueryBinary == "" {
		return fmt.Errorf("scheduler binaries must be set")
	}
	if c.Scheduler.Shell == "" {
		return fmt.Errorf("scheduler shell must be set")
	}
	if c.Catalog.Binary == "" {
		return fmt.Errorf("catalog binary must be set")
	}
	if c.Proxy.Binary == "" {
		return fmt.Errorf("proxy binary must be set")
	}
	if c.Catalog.Parallelism < 1 {
		return fmt.Errorf("catalog parallelism must be positive, got %d", c.Catalog.Parallelism)
	}
	if c.Merge.FilesPerJob < 1 {
		return fmt.Errorf("merge files_per_job must be positive, got %d", c.Merge.FilesPerJob)
	}
	return nil
}

// GetCatalogTimeout returns the catalog query timeout as a duration.
func (c *Settings) GetCatalogTimeout() time.Duration {
	d, err := time.ParseDuration(c.Catalog.Timeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetExecutionTimeout returns the default execution timeout as a duration.
func (c *Settings) GetExecutionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.DefaultTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}
