package config

const (
	defaultLogDir                  = "~/.local/share/reelforge/logs"
	defaultTranscoderDir           = ""
	defaultEncoderBinary           = "blender"
	defaultInitScript              = "~/.config/reelforge/scripts/init_sequence.py"
	defaultOutputRetries           = 5
	defaultConcatBinary            = "catmovie"
	defaultMuxBinary               = "muxmovie"
	defaultFrameRate               = 29.97
	defaultSegmentDuration         = 200
	defaultSegmentTolerance        = 0
	defaultMaxSegmentsPerOutput    = 20
	defaultOutputTolerance         = 5
	defaultFingerprintPolicy       = "mtime"
	defaultFingerprintLockTimeout  = 30
	defaultWorkerPollInterval      = 5
	defaultWorkerErrorRetry        = 10
	defaultWorkerMaxRetryInterval  = 120
	defaultWorkerHeartbeatInterval = 15
	defaultWorkerHeartbeatTimeout  = 120
	defaultWorkerMaxAttempts       = 3
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TranscoderDir: defaultTranscoderDir,
			LogDir:        defaultLogDir,
		},
		Encoder: Encoder{
			Binary:        defaultEncoderBinary,
			InitScript:    defaultInitScript,
			OutputRetries: defaultOutputRetries,
		},
		Assembler: Assembler{
			ConcatBinary: defaultConcatBinary,
			MuxBinary:    defaultMuxBinary,
			FrameRate:    defaultFrameRate,
		},
		Chunking: Chunking{
			SegmentDuration:      defaultSegmentDuration,
			SegmentTolerance:     defaultSegmentTolerance,
			MaxSegmentsPerOutput: defaultMaxSegmentsPerOutput,
			OutputTolerance:      defaultOutputTolerance,
		},
		Fingerprint: Fingerprint{
			Policy:             defaultFingerprintPolicy,
			LockTimeoutSeconds: defaultFingerprintLockTimeout,
		},
		Worker: Worker{
			PollInterval:       defaultWorkerPollInterval,
			ErrorRetryInterval: defaultWorkerErrorRetry,
			MaxRetryInterval:   defaultWorkerMaxRetryInterval,
			HeartbeatInterval:  defaultWorkerHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkerHeartbeatTimeout,
			MaxAttempts:        defaultWorkerMaxAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
