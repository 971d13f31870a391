package config

func (b BaseConfig) GetName() string             { return b.Name }
func (b BaseConfig) GetDebug() bool              { return b.Debug }
func (b BaseConfig) GetServer() Server           { return b.Server }
func (b BaseConfig) GetPersistence() Persistence { return b.Persistence }
func (b BaseConfig) GetAuth() Auth               { return b.Auth }
func (b BaseConfig) GetEscrow() Escrow           { return b.Escrow }
func (b BaseConfig) GetTokens() Tokens           { return b.Tokens }
func (b BaseConfig) GetTelegram() Telegram       { return b.Telegram }
func (b BaseConfig) GetMetrics() Metrics         { return b.Metrics }
func (s Server) GetAddress() string              { return s.Address }
func (p Persistence) GetDSN() string             { return p.DSN }
func (p Persistence) GetDebug() bool             { return p.Debug }
func (a Auth) GetSigningKey() string             { return a.SigningKey }
func (a Auth) GetSigningMethod() string          { return a.SigningMethod }
func (a Auth) GetContextKey() string             { return a.ContextKey }
func (a Auth) GetTokenExpiration() int           { return a.TokenExpiration }
func (a Auth) GetTokenLookup() string            { return a.TokenLookup }
func (a Auth) GetAuthScheme() string             { return a.AuthScheme }
func (a Auth) GetIssuer() string                 { return a.Issuer }
func (a Auth) GetAudience() []string             { return a.Audience }
func (e Escrow) GetJoinPerMinute() float64       { return e.JoinPerMinute }
func (e Escrow) GetJoinBurst() int               { return e.JoinBurst }
func (t Telegram) GetEnabled() bool              { return t.Enabled }
func (t Telegram) GetBotToken() string           { return t.BotToken }
func (t Telegram) GetBotName() string            { return t.BotName }
func (t Telegram) GetAPIBaseURL() string         { return t.APIBaseURL }
func (t Telegram) GetWebhookSecret() string      { return t.WebhookSecret }
func (m Metrics) GetEnabled() bool               { return m.Enabled }
func (m Metrics) GetAddress() string             { return m.Address }
