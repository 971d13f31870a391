package telegram

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-escrow"
	"github.com/goliatone/go-router"
)

// SecretHeader carries the webhook secret configured with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Update is the subset of a Bot API update used by the webhook.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an incoming chat message.
type Message struct {
	Text string `json:"text"`
	From *User  `json:"from,omitempty"`
	Chat Chat   `json:"chat"`
}

// User is the Telegram account that sent a message.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID int64 `json:"id"`
}

// Controller serves the linking endpoints and the bot webhook.
type Controller struct {
	Linker        *Linker
	Sessions      SessionCache
	Sender        Sender
	Logger        escrow.Logger
	ContextKey    string
	WebhookSecret string
	ReplyTimeout  time.Duration
	ErrorHandler  router.ErrorHandler
}

// ControllerOption customizes the controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger escrow.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithWebhookSecret requires the secret header on webhook calls.
func WithWebhookSecret(secret string) ControllerOption {
	return func(c *Controller) {
		c.WebhookSecret = secret
	}
}

// WithSender enables confirmation replies in the chat.
func WithSender(sender Sender) ControllerOption {
	return func(c *Controller) {
		c.Sender = sender
	}
}

// WithContextKey sets the locals key holding the token claims.
func WithContextKey(key string) ControllerOption {
	return func(c *Controller) {
		if key != "" {
			c.ContextKey = key
		}
	}
}

// WithErrorHandler overrides the JSON error handler.
func WithErrorHandler(handler router.ErrorHandler) ControllerOption {
	return func(c *Controller) {
		if handler != nil {
			c.ErrorHandler = handler
		}
	}
}

// NewController builds the controller. It panics when linker or sessions
// are missing.
func NewController(linker *Linker, sessions SessionCache, opts ...ControllerOption) *Controller {
	if linker == nil {
		panic("Missing Linker in telegram controller...")
	}
	if sessions == nil {
		panic("Missing SessionCache in telegram controller...")
	}

	c := &Controller{
		Linker:       linker,
		Sessions:     sessions,
		ContextKey:   "user",
		ReplyTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = escrow.NewErrorHandler(c.Logger, false)
	}
	return c
}

// RegisterRoutes mounts the endpoints. protected guards user routes and
// admin guards the moderation route; nil middleware is skipped.
func (c *Controller) RegisterRoutes(group escrow.RouteRegistrar, protected, admin router.MiddlewareFunc) {
	group.Post("/telegram/link-token", c.LinkToken, middlewares(protected)...)
	group.Get("/telegram/link", c.GetLink, middlewares(protected)...)
	group.Delete("/telegram/link", c.DeleteLink, middlewares(protected)...)
	group.Delete("/telegram/link/:user_id", c.AdminDeleteLink, middlewares(admin)...)
	group.Post("/telegram/webhook", c.Webhook)
}

func middlewares(mw router.MiddlewareFunc) []router.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []router.MiddlewareFunc{mw}
}

func (c *Controller) LinkToken(ctx router.Context) error {
	actor := escrow.ActorFromRouter(ctx, c.ContextKey)
	if !actor.Authenticated() {
		return c.ErrorHandler(ctx, escrow.ErrUnauthorized)
	}

	link, err := c.Linker.IssueLink(actor.ID)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"token": link.Token,
		"url":   link.URL,
	})
}

func (c *Controller) GetLink(ctx router.Context) error {
	actor := escrow.ActorFromRouter(ctx, c.ContextKey)
	if !actor.Authenticated() {
		return c.ErrorHandler(ctx, escrow.ErrUnauthorized)
	}

	session, ok := c.Sessions.GetLatest(actor.ID)
	out := map[string]any{"linked": ok}
	if ok {
		out["session"] = session
	}
	return ctx.JSON(router.StatusOK, out)
}

func (c *Controller) DeleteLink(ctx router.Context) error {
	actor := escrow.ActorFromRouter(ctx, c.ContextKey)
	if !actor.Authenticated() {
		return c.ErrorHandler(ctx, escrow.ErrUnauthorized)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"cleared": c.Sessions.ClearAll(actor.ID),
	})
}

func (c *Controller) AdminDeleteLink(ctx router.Context) error {
	actor := escrow.ActorFromRouter(ctx, c.ContextKey)
	if !actor.Authenticated() {
		return c.ErrorHandler(ctx, escrow.ErrUnauthorized)
	}
	if !actor.IsAdmin() {
		return c.ErrorHandler(ctx, escrow.ErrForbidden)
	}

	userID := ctx.Param("user_id")
	if userID == "" {
		return c.ErrorHandler(ctx, goerrors.New("user_id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user_id": userID,
		"cleared": c.Sessions.ClearAll(userID),
	})
}

// Webhook handles bot updates. Only "/start <token>" is acted on; every
// other well formed update is acknowledged so Telegram does not retry it.
func (c *Controller) Webhook(ctx router.Context) error {
	if c.WebhookSecret != "" && ctx.GetString(SecretHeader, "") != c.WebhookSecret {
		return c.ErrorHandler(ctx, escrow.ErrUnauthorized)
	}

	update := new(Update)
	if err := ctx.Bind(update); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse telegram update").
			WithCode(goerrors.CodeBadRequest))
	}

	if update.Message == nil {
		return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
	}

	token, ok := ParseStartCommand(update.Message.Text)
	if !ok {
		return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
	}

	username := ""
	if update.Message.From != nil {
		username = update.Message.From.Username
	}

	chatID := update.Message.Chat.ID
	session, linked := c.Linker.Complete(token, chatID, username)
	if linked {
		c.reply(ctx.Context(), chatID, "Your account is linked. You will receive escrow updates here.")
		c.info("telegram chat linked", "user_id", session.UserID, "session_id", session.SessionID)
	} else {
		c.reply(ctx.Context(), chatID, "This link is invalid or has expired. Request a new one from the app.")
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":     true,
		"linked": linked,
	})
}

func (c *Controller) reply(ctx context.Context, chatID int64, text string) {
	if c.Sender == nil {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.ReplyTimeout)
	defer cancel()

	if err := c.Sender.SendMessage(rctx, chatID, text); err != nil && c.Logger != nil {
		c.Logger.Warn("telegram reply failed", "chat_id", chatID, "error", err)
	}
}

func (c *Controller) info(msg string, args ...any) {
	if c.Logger != nil {
		c.Logger.Info(msg, args...)
	}
}
