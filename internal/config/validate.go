package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Validate ensures the configuration is usable. Every problem is reported,
// not just the first.
func (c *Config) Validate() error {
	return multierr.Combine(
		c.validateEncoder(),
		c.validateAssembler(),
		c.validateChunking(),
		c.validateFingerprint(),
		c.validateWorker(),
		c.validateLogging(),
	)
}

func (c *Config) validateEncoder() error {
	var err error
	if c.Encoder.OutputRetries < 0 {
		err = multierr.Append(err, errors.New("encoder.output_retries must be >= 0"))
	}
	if _, parseErr := c.EncoderArgs(); parseErr != nil {
		err = multierr.Append(err, parseErr)
	}
	return err
}

func (c *Config) validateAssembler() error {
	if c.Assembler.FrameRate <= 0 {
		return errors.New("assembler.frame_rate must be positive")
	}
	return nil
}

func (c *Config) validateChunking() error {
	var err error
	if c.Chunking.SegmentDuration <= 0 {
		err = multierr.Append(err, errors.New("chunking.segment_duration must be positive"))
	}
	if c.Chunking.SegmentTolerance < 0 {
		err = multierr.Append(err, errors.New("chunking.segment_tolerance must be >= 0"))
	}
	if c.Chunking.MaxSegmentsPerOutput <= 0 {
		err = multierr.Append(err, errors.New("chunking.max_segments_per_output must be positive"))
	}
	if c.Chunking.OutputTolerance < 0 {
		err = multierr.Append(err, errors.New("chunking.output_tolerance must be >= 0"))
	}
	return err
}

func (c *Config) validateFingerprint() error {
	var err error
	switch c.Fingerprint.Policy {
	case "mtime", "hash":
	default:
		err = multierr.Append(err, fmt.Errorf("fingerprint.policy: unsupported value %q (want mtime or hash)", c.Fingerprint.Policy))
	}
	if c.Fingerprint.LockTimeoutSeconds <= 0 {
		err = multierr.Append(err, errors.New("fingerprint.lock_timeout_seconds must be positive"))
	}
	return err
}

func (c *Config) validateWorker() error {
	var err error
	if c.Worker.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("worker.poll_interval must be positive"))
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		err = multierr.Append(err, errors.New("worker.error_retry_interval must be positive"))
	}
	if c.Worker.MaxRetryInterval < c.Worker.ErrorRetryInterval {
		err = multierr.Append(err, errors.New("worker.max_retry_interval must be >= worker.error_retry_interval"))
	}
	if c.Worker.HeartbeatInterval <= 0 {
		err = multierr.Append(err, errors.New("worker.heartbeat_interval must be positive"))
	}
	if c.Worker.HeartbeatTimeout <= c.Worker.HeartbeatInterval {
		err = multierr.Append(err, errors.New("worker.heartbeat_timeout must be greater than worker.heartbeat_interval"))
	}
	if c.Worker.MaxAttempts < 1 {
		err = multierr.Append(err, errors.New("worker.max_attempts must be at least 1"))
	}
	return err
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
