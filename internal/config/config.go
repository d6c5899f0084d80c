package config

import "time"

// Config holds relay server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// AuthGrace force-closes connections that never authenticate.
	AuthGrace time.Duration `mapstructure:"auth_grace" yaml:"auth_grace"`
	// TypingTTL expires typing flags that never saw an explicit stop.
	TypingTTL time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	// SendQueue bounds each connection's outbound event queue.
	SendQueue int `mapstructure:"send_queue" yaml:"send_queue"`
	// MessageRateLimit caps inbound chat messages per connection per minute.
	// Zero disables the limit.
	MessageRateLimit int `mapstructure:"message_rate_limit" yaml:"message_rate_limit"`

	// ServiceKeyHash is the bcrypt hash of the key the booking subsystem
	// presents on /internal endpoints. Empty disables those endpoints.
	ServiceKeyHash string `mapstructure:"service_key_hash" yaml:"service_key_hash"`

	LiveKitAPIKey    string `mapstructure:"livekit_api_key" yaml:"livekit_api_key"`
	LiveKitAPISecret string `mapstructure:"livekit_api_secret" yaml:"livekit_api_secret"`
	LiveKitURL       string `mapstructure:"livekit_url" yaml:"livekit_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "relay.db",
		JWTIssuer:         "tarotdesk",
		JWTAudience:       "tarotdesk-relay",
		AuthGrace:         30 * time.Second,
		TypingTTL:         6 * time.Second,
		SendQueue:         32,
		MessageRateLimit:  120,
	}
}

// VoiceEnabled reports whether LiveKit credentials are configured.
func (c Config) VoiceEnabled() bool {
	return c.LiveKitAPIKey != "" && c.LiveKitAPISecret != "" && c.LiveKitURL != ""
}
