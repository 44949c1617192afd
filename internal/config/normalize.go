package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// normalize trims string fields, fills defaults for empty ones and expands
// every path. The queue database defaults to $REELFORGE_QUEUE_DB, then to
// queue.db inside the log directory.
func (c *Config) normalize() error {
	orDefault(&c.Paths.LogDir, defaultLogDir)
	orDefault(&c.Encoder.Binary, defaultEncoderBinary)
	orDefault(&c.Encoder.InitScript, defaultInitScript)
	orDefault(&c.Assembler.ConcatBinary, defaultConcatBinary)
	orDefault(&c.Assembler.MuxBinary, defaultMuxBinary)
	orDefault(&c.Fingerprint.Policy, defaultFingerprintPolicy)
	orDefault(&c.Logging.Format, defaultLogFormat)
	orDefault(&c.Logging.Level, defaultLogLevel)
	c.Fingerprint.Policy = strings.ToLower(c.Fingerprint.Policy)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	if err := expandInto("paths.log_dir", &c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.TranscoderDir = strings.TrimSpace(c.Paths.TranscoderDir)
	if err := expandInto("paths.transcoder_dir", &c.Paths.TranscoderDir); err != nil {
		return err
	}
	orDefault(&c.Paths.QueueDB, os.Getenv("REELFORGE_QUEUE_DB"))
	orDefault(&c.Paths.QueueDB, filepath.Join(c.Paths.LogDir, "queue.db"))
	if err := expandInto("paths.queue_db", &c.Paths.QueueDB); err != nil {
		return err
	}
	return expandInto("encoder.init_script", &c.Encoder.InitScript)
}

// orDefault trims *field and replaces it with def when nothing is left.
func orDefault(field *string, def string) {
	*field = strings.TrimSpace(*field)
	if *field == "" {
		*field = strings.TrimSpace(def)
	}
}

func expandInto(key string, field *string) error {
	expanded, err := expandPath(*field)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*field = expanded
	return nil
}
