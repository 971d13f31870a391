package config

// BaseConfig is the escrowd configuration tree loaded from app.json.
type BaseConfig struct {
	Name        string      `koanf:"name" json:"name"`
	Debug       bool        `koanf:"debug" json:"debug"`
	Server      Server      `koanf:"server" json:"server"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Auth        Auth        `koanf:"auth" json:"auth"`
	Escrow      Escrow      `koanf:"escrow" json:"escrow"`
	Tokens      Tokens      `koanf:"tokens" json:"tokens"`
	Telegram    Telegram    `koanf:"telegram" json:"telegram"`
	Metrics     Metrics     `koanf:"metrics" json:"metrics"`
}

type Server struct {
	Address                   string `koanf:"address" json:"address"`
	ShutdownTimeoutExpression string `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type Persistence struct {
	DSN                   string `koanf:"dsn" json:"dsn"`
	Debug                 bool   `koanf:"debug" json:"debug"`
	PingTimeoutExpression string `koanf:"ping_timeout" json:"ping_timeout"`
}

type Auth struct {
	SigningKey      string   `koanf:"signing_key" json:"signing_key"`
	SigningMethod   string   `koanf:"signing_method" json:"signing_method"`
	ContextKey      string   `koanf:"context_key" json:"context_key"`
	TokenExpiration int      `koanf:"token_expiration" json:"token_expiration"`
	TokenLookup     string   `koanf:"token_lookup" json:"token_lookup"`
	AuthScheme      string   `koanf:"auth_scheme" json:"auth_scheme"`
	Issuer          string   `koanf:"issuer" json:"issuer"`
	Audience        []string `koanf:"audience" json:"audience"`
}

type Escrow struct {
	NotificationTimeoutExpression string  `koanf:"notification_timeout" json:"notification_timeout"`
	JoinPerMinute                 float64 `koanf:"join_per_minute" json:"join_per_minute"`
	JoinBurst                     int     `koanf:"join_burst" json:"join_burst"`
}

type Tokens struct {
	TTLExpression           string `koanf:"ttl" json:"ttl"`
	SweepIntervalExpression string `koanf:"sweep_interval" json:"sweep_interval"`
}

type Telegram struct {
	Enabled                 bool   `koanf:"enabled" json:"enabled"`
	BotToken                string `koanf:"bot_token" json:"-"`
	BotName                 string `koanf:"bot_name" json:"bot_name"`
	APIBaseURL              string `koanf:"api_base_url" json:"api_base_url"`
	WebhookSecret           string `koanf:"webhook_secret" json:"-"`
	SessionTTLExpression    string `koanf:"session_ttl" json:"session_ttl"`
	SweepIntervalExpression string `koanf:"sweep_interval" json:"sweep_interval"`
}

type Metrics struct {
	Enabled bool   `koanf:"enabled" json:"enabled"`
	Address string `koanf:"address" json:"address"`
}
