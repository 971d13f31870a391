//go:generate app-config -input ./app.json -output ./config_structs.go -pkg config --struct BaseConfig
//go:generate config-getters -input ./config_structs.go -output config_getters.go
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-escrow"
	"github.com/goliatone/go-escrow/ephemeral"
	"github.com/goliatone/go-escrow/telegram"
)

var _ escrow.Config = Auth{}

func (b BaseConfig) Validate() error {
	if err := goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&b,
			validation.Field(&b.Server),
			validation.Field(&b.Persistence),
			validation.Field(&b.Auth),
			validation.Field(&b.Escrow),
			validation.Field(&b.Tokens),
			validation.Field(&b.Telegram),
			validation.Field(&b.Metrics),
		)
	}, "invalid escrowd configuration"); err != nil {
		return err
	}
	return nil
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.ShutdownTimeoutExpression, validation.By(durationRule)),
	)
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, validation.Required),
		validation.Field(&p.PingTimeoutExpression, validation.By(durationRule)),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.SigningMethod, validation.In("HS256", "HS384", "HS512")),
		validation.Field(&a.TokenExpiration, validation.Min(0)),
	)
}

func (e Escrow) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.NotificationTimeoutExpression, validation.By(durationRule)),
		validation.Field(&e.JoinPerMinute, validation.Min(float64(0))),
		validation.Field(&e.JoinBurst, validation.Min(0)),
	)
}

func (t Tokens) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.TTLExpression, validation.By(durationRule)),
		validation.Field(&t.SweepIntervalExpression, validation.By(durationRule)),
	)
}

func (t Telegram) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.BotToken, validation.When(t.Enabled, validation.Required)),
		validation.Field(&t.BotName, validation.When(t.Enabled, validation.Required)),
		validation.Field(&t.APIBaseURL, is.URL),
		validation.Field(&t.SessionTTLExpression, validation.By(durationRule)),
		validation.Field(&t.SweepIntervalExpression, validation.By(durationRule)),
	)
}

func (m Metrics) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Address, validation.When(m.Enabled, validation.Required)),
	)
}

func durationRule(value any) error {
	expr, _ := value.(string)
	if expr == "" {
		return nil
	}
	if _, err := time.ParseDuration(expr); err != nil {
		return fmt.Errorf("must be a duration: %w", err)
	}
	return nil
}

// duration parses expr, falling back to def when empty. Validate rejects
// malformed expressions before the getters run.
func duration(expr string, def time.Duration) time.Duration {
	if expr == "" {
		return def
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(
			fmt.Sprintf("unable to parse time: expr %s", expr),
		)
	}
	return dur
}

func (s Server) GetShutdownTimeout() time.Duration {
	return duration(s.ShutdownTimeoutExpression, 10*time.Second)
}

func (p Persistence) GetPingTimeout() time.Duration {
	return duration(p.PingTimeoutExpression, 5*time.Second)
}

func (e Escrow) GetNotificationTimeout() time.Duration {
	return duration(e.NotificationTimeoutExpression, escrow.DefaultNotificationTimeout)
}

// GetJoinLimit maps the escrow section onto escrow.JoinLimit.
func (e Escrow) GetJoinLimit() escrow.JoinLimit {
	return escrow.JoinLimit{
		PerMinute: e.JoinPerMinute,
		Burst:     e.JoinBurst,
	}
}

func (t Tokens) GetTTL() time.Duration {
	return duration(t.TTLExpression, ephemeral.DefaultTTL)
}

func (t Tokens) GetSweepInterval() time.Duration {
	return duration(t.SweepIntervalExpression, ephemeral.DefaultSweepInterval)
}

func (t Telegram) GetSessionTTL() time.Duration {
	return duration(t.SessionTTLExpression, telegram.DefaultSessionTTL)
}

func (t Telegram) GetSweepInterval() time.Duration {
	return duration(t.SweepIntervalExpression, telegram.DefaultSessionSweepInterval)
}
