package config

const (
	defaultServerURL = "http://localhost:4096"

	defaultRetryDelayMS = 1000
	defaultMaxRetries   = 3

	defaultStubListen = ":4096"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			URL: defaultServerURL,
		},
		Stream: StreamConfig{
			RetryDelayMS: defaultRetryDelayMS,
			MaxRetries:   defaultMaxRetries,
		},
		Stub: StubConfig{
			Listen: defaultStubListen,
		},
	}
}
