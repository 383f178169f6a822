// Package config provides configuration handling for the connection log daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/irctrakz/netlog/pkg/filter"
	"github.com/irctrakz/netlog/pkg/logging"
	"github.com/irctrakz/netlog/pkg/netlog"
	"github.com/irctrakz/netlog/pkg/record"
	"github.com/irctrakz/netlog/pkg/ring"
)

// Config represents the complete daemon configuration.
type Config struct {
	Buffer    BufferConfig  `json:"buffer" yaml:"buffer"`
	Syslog    SyslogConfig  `json:"syslog" yaml:"syslog"`
	Probes    []string      `json:"probes" yaml:"probes"`
	Whitelist []string      `json:"whitelist" yaml:"whitelist"`
	Server    ServerConfig  `json:"server" yaml:"server"`
	Capture   CaptureConfig `json:"capture" yaml:"capture"`
	Metrics   MetricsConfig `json:"metrics" yaml:"metrics"`
	Logging   LoggingConfig `json:"logging" yaml:"logging"`
}

// BufferConfig sizes the record store.
type BufferConfig struct {
	// Capacity is the arena size in bytes. It is fixed for the process lifetime.
	Capacity int `json:"capacity" yaml:"capacity"`
}

// SyslogConfig controls the header prefixed to each line.
type SyslogConfig struct {
	Facility int    `json:"facility" yaml:"facility"`
	Level    int    `json:"level" yaml:"level"`
	Tag      string `json:"tag" yaml:"tag"`
}

// ServerConfig controls the HTTP endpoint.
type ServerConfig struct {
	// Listen is the address to serve on. Empty disables the server.
	Listen string `json:"listen" yaml:"listen"`

	// LogPath is the URL path of the line stream.
	LogPath string `json:"logPath" yaml:"logPath"`

	// MaxLine bounds a single streamed line in bytes.
	MaxLine int `json:"maxLine" yaml:"maxLine"`
}

// CaptureConfig controls the raw-socket event source.
type CaptureConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Protocol string `json:"protocol" yaml:"protocol"`
	Workers  int    `json:"workers" yaml:"workers"`
	QueueCap int    `json:"queueCap" yaml:"queueCap"`
	Source   string `json:"source" yaml:"source"`

	// Pcap is a file that receives every captured packet. Empty disables it.
	Pcap string `json:"pcap,omitempty" yaml:"pcap,omitempty"`
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	// Prometheus exposes /metrics on the HTTP server.
	Prometheus bool `json:"prometheus" yaml:"prometheus"`

	// Interval between periodic stats dumps to the log. Empty disables them.
	Interval string `json:"interval" yaml:"interval"`

	// Format of the stats dump: text or json.
	Format string `json:"format" yaml:"format"`
}

// LoggingConfig contains configuration for logging.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `json:"level" yaml:"level"`

	// File is the log file path.
	File string `json:"file" yaml:"file"`

	// MaxSize is the maximum size of the log file in megabytes.
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `json:"maxBackups" yaml:"maxBackups"`

	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	h := record.DefaultHeader()
	return &Config{
		Buffer: BufferConfig{Capacity: ring.DefaultCapacity},
		Syslog: SyslogConfig{Facility: h.Facility, Level: h.Level, Tag: h.Tag},
		Probes: netlog.AllProbes.Names(),
		Server: ServerConfig{
			Listen:  ":8080",
			LogPath: "/log",
			MaxLine: 4096,
		},
		Capture: CaptureConfig{
			Protocol: "tcp",
			Workers:  4,
			QueueCap: 1000,
			Source:   "[capture]",
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			Format:     "text",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// LoadFromFile loads configuration from a .json, .yaml or .yml file.
func LoadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return nil
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		} else {
			logging.Warnf("Ignoring %s=%q: %v", key, val, err)
		}
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := strings.ToLower(strings.TrimSpace(os.Getenv(key))); val != "" {
		*dst = val == "1" || val == "true" || val == "yes" || val == "on"
	}
}

func envList(key string, dst *[]string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(val, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

// LoadFromEnv overrides configuration from NETLOG_* environment variables.
func LoadFromEnv(config *Config) {
	envInt("NETLOG_BUFFER_CAPACITY", &config.Buffer.Capacity)

	envInt("NETLOG_SYSLOG_FACILITY", &config.Syslog.Facility)
	envInt("NETLOG_SYSLOG_LEVEL", &config.Syslog.Level)
	envString("NETLOG_SYSLOG_TAG", &config.Syslog.Tag)

	envList("NETLOG_PROBES", &config.Probes)
	envList("NETLOG_WHITELIST", &config.Whitelist)

	envString("NETLOG_SERVER_LISTEN", &config.Server.Listen)
	envString("NETLOG_SERVER_LOG_PATH", &config.Server.LogPath)
	envInt("NETLOG_SERVER_MAX_LINE", &config.Server.MaxLine)

	envBool("NETLOG_CAPTURE_ENABLED", &config.Capture.Enabled)
	envString("NETLOG_CAPTURE_PROTOCOL", &config.Capture.Protocol)
	envInt("NETLOG_CAPTURE_WORKERS", &config.Capture.Workers)
	envInt("NETLOG_CAPTURE_QUEUE_CAP", &config.Capture.QueueCap)
	envString("NETLOG_CAPTURE_SOURCE", &config.Capture.Source)
	envString("NETLOG_CAPTURE_PCAP", &config.Capture.Pcap)

	envBool("NETLOG_METRICS_PROMETHEUS", &config.Metrics.Prometheus)
	envString("NETLOG_METRICS_INTERVAL", &config.Metrics.Interval)
	envString("NETLOG_METRICS_FORMAT", &config.Metrics.Format)

	envString("NETLOG_LOGGING_LEVEL", &config.Logging.Level)
	envString("NETLOG_LOGGING_FILE", &config.Logging.File)
	envInt("NETLOG_LOGGING_MAX_SIZE", &config.Logging.MaxSize)
	envInt("NETLOG_LOGGING_MAX_BACKUPS", &config.Logging.MaxBackups)
	envInt("NETLOG_LOGGING_MAX_AGE", &config.Logging.MaxAge)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Buffer.Capacity < ring.MinCapacity {
		return fmt.Errorf("buffer capacity %d below minimum %d", c.Buffer.Capacity, ring.MinCapacity)
	}

	if c.Syslog.Facility < 0 || c.Syslog.Facility > 23 {
		return fmt.Errorf("invalid syslog facility: %d", c.Syslog.Facility)
	}
	if c.Syslog.Level < 0 || c.Syslog.Level > 7 {
		return fmt.Errorf("invalid syslog level: %d", c.Syslog.Level)
	}
	if c.Syslog.Tag == "" || strings.ContainsAny(c.Syslog.Tag, " \t\n") {
		return fmt.Errorf("invalid syslog tag: %q", c.Syslog.Tag)
	}

	if _, err := c.ProbeMask(); err != nil {
		return err
	}
	if _, err := filter.NewWhitelist(c.Whitelist); err != nil {
		return err
	}

	if c.Server.Listen != "" && !strings.HasPrefix(c.Server.LogPath, "/") {
		return fmt.Errorf("invalid server log path: %q", c.Server.LogPath)
	}
	if c.Server.MaxLine < 0 {
		return fmt.Errorf("invalid server max line: %d", c.Server.MaxLine)
	}

	if c.Capture.Enabled {
		switch c.Capture.Protocol {
		case "tcp", "udp":
		default:
			return fmt.Errorf("invalid capture protocol: %q", c.Capture.Protocol)
		}
	}
	if c.Capture.Workers < 0 || c.Capture.QueueCap < 0 {
		return fmt.Errorf("capture workers and queueCap must not be negative")
	}

	if _, err := c.ReportInterval(); err != nil {
		return err
	}
	switch c.Metrics.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid metrics format: %q", c.Metrics.Format)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}
	return nil
}

// Header returns the syslog header readers format lines with.
func (c *Config) Header() record.Header {
	return record.Header{Facility: c.Syslog.Facility, Level: c.Syslog.Level, Tag: c.Syslog.Tag}
}

// ProbeMask returns the enabled probe set.
func (c *Config) ProbeMask() (netlog.Probes, error) {
	return netlog.ParseProbes(strings.Join(c.Probes, ","))
}

// ReportInterval returns the stats dump interval, zero when disabled.
func (c *Config) ReportInterval() (time.Duration, error) {
	if c.Metrics.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Metrics.Interval)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid metrics interval: %q", c.Metrics.Interval)
	}
	return d, nil
}

// ApplyLogging applies the logging configuration.
func (c *Config) ApplyLogging() error {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		level = logging.InfoLevel
	}
	logging.SetLevel(level)

	if c.Logging.File != "" {
		err := logging.EnableFileLogging(
			filepath.Dir(c.Logging.File),
			filepath.Base(c.Logging.File),
			c.Logging.MaxSize,
			c.Logging.MaxBackups,
			c.Logging.MaxAge,
		)
		if err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}
	return nil
}

// SaveToFile saves the configuration to a .json, .yaml or .yml file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
