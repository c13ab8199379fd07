package config

const (
	defaultDataDir               = "~/.local/share/newsroom"
	defaultLogDir                = "~/.local/share/newsroom/logs"
	defaultAPIBind               = "127.0.0.1:7390"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultSweepInterval         = 30
	defaultErrorRetryInterval    = 10
	defaultRecentlyPublishedDays = 7
	defaultPreviewTokenTTLHours  = 24
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Workflow: Workflow{
			SweepInterval:         defaultSweepInterval,
			ErrorRetryInterval:    defaultErrorRetryInterval,
			RecentlyPublishedDays: defaultRecentlyPublishedDays,
			PreviewTokenTTLHours:  defaultPreviewTokenTTLHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
