package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and database locations.
type Paths struct {
	// TranscoderDir holds segment files and prepared scenes. Empty means
	// "_Transcoder" beside each job's output file.
	TranscoderDir string `toml:"transcoder_dir"`
	LogDir        string `toml:"log_dir"`
	QueueDB       string `toml:"queue_db"`
}

// Encoder configures the external scene encoder.
type Encoder struct {
	Binary        string `toml:"binary"`
	InitScript    string `toml:"init_script"`
	ExtraArgs     string `toml:"extra_args"`
	OutputRetries int    `toml:"output_retries"`
}

// Assembler configures the concatenation and muxing tools.
type Assembler struct {
	ConcatBinary string  `toml:"concat_binary"`
	MuxBinary    string  `toml:"mux_binary"`
	FrameRate    float64 `toml:"frame_rate"`
}

// Chunking controls how a frame range is split into segments and how
// segments are grouped into outputs. The two tolerances are independent:
// SegmentTolerance counts frames, OutputTolerance counts segments.
type Chunking struct {
	SegmentDuration      int `toml:"segment_duration"`
	SegmentTolerance     int `toml:"segment_tolerance"`
	MaxSegmentsPerOutput int `toml:"max_segments_per_output"`
	OutputTolerance      int `toml:"output_tolerance"`
}

// Fingerprint selects the change-detection policy.
type Fingerprint struct {
	Policy             string `toml:"policy"`
	LockTimeoutSeconds int    `toml:"lock_timeout_seconds"`
}

// Worker contains polling and heartbeat timing, in seconds.
type Worker struct {
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	MaxRetryInterval   int `toml:"max_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	// MaxAttempts bounds how often a retryable failure is returned to pending.
	MaxAttempts        int `toml:"max_attempts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelforge.
//
// Configuration sections by subsystem:
//   - Paths: transcoder scratch root, logs, queue database
//   - Encoder: scene encoder binary, init script, collision retries
//   - Assembler: concatenation and mux tools, audio frame rate
//   - Chunking: segment size and the two merge tolerances
//   - Fingerprint: smart update token policy
//   - Worker: poll and heartbeat intervals
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Encoder     Encoder     `toml:"encoder"`
	Assembler   Assembler   `toml:"assembler"`
	Chunking    Chunking    `toml:"chunking"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Worker      Worker      `toml:"worker"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns ~/.config/reelforge/config.toml, expanded.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelforge/config.toml")
}

// Load reads the configuration at path, or the first file found among
// $REELFORGE_CONFIG, DefaultConfigPath and ./reelforge.toml when path is
// empty. Missing files yield defaults. It returns the normalized, validated
// config, the path it settled on and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg := Default()
	if exists {
		if err := decodeFile(resolved, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

// decodeFile rejects keys the Config struct does not declare, naming each
// one so a typo in a render node's file is easy to spot.
func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	err = dec.Decode(cfg)
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		keys := make([]string, len(strict.Errors))
		for i, e := range strict.Errors {
			keys[i] = strings.Join(e.Key(), ".")
		}
		return fmt.Errorf("parse config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("REELFORGE_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reelforge.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{defaultPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the directories workers write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, filepath.Dir(c.Paths.QueueDB)}
	if c.Paths.TranscoderDir != "" {
		dirs = append(dirs, c.Paths.TranscoderDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EncoderArgs splits Encoder.ExtraArgs into argv words without invoking a shell.
func (c *Config) EncoderArgs() ([]string, error) {
	if strings.TrimSpace(c.Encoder.ExtraArgs) == "" {
		return nil, nil
	}
	args, err := shellwords.Parse(c.Encoder.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("encoder.extra_args: %w", err)
	}
	return args, nil
}

// PollInterval returns Worker.PollInterval as a duration.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Worker.PollInterval)
}

// ErrorRetryInterval returns Worker.ErrorRetryInterval as a duration.
func (c *Config) ErrorRetryInterval() time.Duration {
	return seconds(c.Worker.ErrorRetryInterval)
}

// MaxRetryInterval returns Worker.MaxRetryInterval as a duration.
func (c *Config) MaxRetryInterval() time.Duration {
	return seconds(c.Worker.MaxRetryInterval)
}

// HeartbeatInterval returns Worker.HeartbeatInterval as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return seconds(c.Worker.HeartbeatInterval)
}

// HeartbeatTimeout returns Worker.HeartbeatTimeout as a duration.
func (c *Config) HeartbeatTimeout() time.Duration {
	return seconds(c.Worker.HeartbeatTimeout)
}

// FingerprintLockTimeout returns Fingerprint.LockTimeoutSeconds as a duration.
func (c *Config) FingerprintLockTimeout() time.Duration {
	return seconds(c.Fingerprint.LockTimeoutSeconds)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// expandPath resolves a leading "~" or "~/" against the home directory and
// makes the result absolute. Empty stays empty.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = filepath.Join(home, value[1:])
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the configuration's path rules to a command line
// argument.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
