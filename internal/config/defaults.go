package config

const (
	defaultLogDir       = "~/.local/share/capflow/logs"
	defaultCatalogPath  = "~/.local/share/capflow/catalog.db"
	defaultDispatchURL  = "https://play.itunes.apple.com/WebObjects/MZPlay.woa/wa/subPlaybackDispatch"
	defaultKeyURL       = "https://play.itunes.apple.com/WebObjects/MZPlay.woa/music/fps"
	defaultKeyPolicy    = KeyPolicyConsume
	defaultSuccessMin   = 200
	defaultSuccessMax   = 299
	defaultIngestBind   = "127.0.0.1:7488"
	defaultMaxBodyBytes = 32 << 20
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
)

// Key policy names accepted by correlation.key_policy.
const (
	KeyPolicyConsume = "consume"
	KeyPolicyRetain  = "retain"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
		},
		Endpoints: Endpoints{
			DispatchURL: defaultDispatchURL,
			KeyURL:      defaultKeyURL,
		},
		Correlation: Correlation{
			KeyPolicy:  defaultKeyPolicy,
			SuccessMin: defaultSuccessMin,
			SuccessMax: defaultSuccessMax,
		},
		Ingest: Ingest{
			Bind:         defaultIngestBind,
			MaxBodyBytes: defaultMaxBodyBytes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
