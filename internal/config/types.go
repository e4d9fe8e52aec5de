package config

// Config is the root configuration for sagebridge.
type Config struct {
	OpenAI   OpenAIConfig   `yaml:"openai,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// OpenAIConfig holds the assistant backend settings.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl,omitempty"`
	Model   string `yaml:"model,omitempty"`
	// AssistantID selects an existing assistant. When empty, one is
	// created at startup with the configured model.
	AssistantID string `yaml:"assistantId,omitempty"`
	// SessionTimeoutSeconds is the idle TTL after which a context's
	// backend session is recycled on next use.
	SessionTimeoutSeconds int `yaml:"sessionTimeoutSeconds,omitempty"`
}

// SessionConfig selects and locates the session table store.
type SessionConfig struct {
	Store string `yaml:"store,omitempty"` // "file" | "sqlite"
	Path  string `yaml:"path,omitempty"`  // overrides the default location under the data dir
}

// ChannelsConfig enables platform integrations. A nil entry disables the
// channel.
type ChannelsConfig struct {
	Discord *DiscordConfig `yaml:"discord,omitempty"`
	IRC     *IRCConfig     `yaml:"irc,omitempty"`
	Gateway *GatewayConfig `yaml:"gateway,omitempty"`
}

// DiscordConfig configures the Discord bot channel.
type DiscordConfig struct {
	BotToken string `yaml:"botToken"`
	// AllowedChannels restricts which Discord channels the bot answers
	// in. Empty means all.
	AllowedChannels []string `yaml:"allowedChannels,omitempty"`
}

// IRCConfig configures the IRC channel.
type IRCConfig struct {
	Server   string   `yaml:"server"`
	Port     int      `yaml:"port,omitempty"`
	Nick     string   `yaml:"nick"`
	Password string   `yaml:"password,omitempty"`
	Channels []string `yaml:"channels,omitempty"`
	UseTLS   bool     `yaml:"useTLS,omitempty"`
}

// GatewayConfig configures the local WebSocket gateway channel.
type GatewayConfig struct {
	Port  int    `yaml:"port,omitempty"`
	Token string `yaml:"token,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}
