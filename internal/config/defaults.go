package config

const (
	defaultConfigPath        = "~/.config/cloudpush/config.toml"
	defaultStateDir          = "~/.local/share/cloudpush"
	defaultLogDir            = "~/.local/share/cloudpush/logs"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultOnlySuccess       = true
	defaultRetryTimes        = 3
	defaultTimeoutSeconds    = 10
	defaultRetryDelaySeconds = 2
	defaultRetryClientErrors = true
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogMaxSizeMB      = 20
	defaultLogMaxBackups     = 5
	defaultLogMaxAgeDays     = 30
	maxRetryTimes            = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Uploader: Uploader{
			OnlySuccess:       defaultOnlySuccess,
			RetryTimes:        defaultRetryTimes,
			Timeout:           defaultTimeoutSeconds,
			RetryDelay:        defaultRetryDelaySeconds,
			RetryClientErrors: defaultRetryClientErrors,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
