package escrow

import (
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controllers.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// EscrowController exposes the escrow lifecycle over HTTP.
type EscrowController struct {
	Debug        bool
	Logger       Logger
	ContextKey   string
	Machine      EscrowStateMachine
	Reader       EscrowReader
	Creator      *CreateEscrowHandler
	ErrorHandler router.ErrorHandler
}

// EscrowControllerOption customizes the controller.
type EscrowControllerOption func(*EscrowController) *EscrowController

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) EscrowControllerOption {
	return func(c *EscrowController) *EscrowController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerContextKey sets the locals key holding the token claims.
func WithControllerContextKey(key string) EscrowControllerOption {
	return func(c *EscrowController) *EscrowController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// WithControllerDebug logs request payloads.
func WithControllerDebug(debug bool) EscrowControllerOption {
	return func(c *EscrowController) *EscrowController {
		c.Debug = debug
		return c
	}
}

// WithControllerErrorHandler overrides the JSON error handler.
func WithControllerErrorHandler(handler router.ErrorHandler) EscrowControllerOption {
	return func(c *EscrowController) *EscrowController {
		if handler != nil {
			c.ErrorHandler = handler
		}
		return c
	}
}

// NewEscrowController builds the controller. It panics when a collaborator is missing.
func NewEscrowController(machine EscrowStateMachine, reader EscrowReader, creator *CreateEscrowHandler, opts ...EscrowControllerOption) *EscrowController {
	c := &EscrowController{
		Logger:     defLogger{},
		ContextKey: "user",
		Machine:    machine,
		Reader:     reader,
		Creator:    creator,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger, c.Debug)
	}

	if c.Machine == nil {
		panic("Missing EscrowStateMachine in escrow controller...")
	}

	if c.Reader == nil {
		panic("Missing EscrowReader in escrow controller...")
	}

	if c.Creator == nil {
		panic("Missing CreateEscrowHandler in escrow controller...")
	}

	return c
}

// RegisterRoutes registers escrow routes. protected guards every route
// except the status catalog.
func (c *EscrowController) RegisterRoutes(group RouteRegistrar, protected ...router.MiddlewareFunc) {
	group.Get("/statuses", c.Statuses)

	group.Post("/escrows", c.Create, protected...)
	group.Get("/escrows", c.List, protected...)
	group.Post("/escrows/join", c.Join, protected...)
	group.Get("/escrows/:id", c.Show, protected...)
	group.Get("/escrows/:id/logs", c.Logs, protected...)
	group.Post("/escrows/:id/actions/:action", c.Act, protected...)
	group.Post("/escrows/:id/status", c.SetStatus, protected...)
	group.Post("/escrows/:id/force-complete", c.ForceComplete, protected...)
}

// Statuses returns the status catalog with labels, colors and next statuses.
func (c *EscrowController) Statuses(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"statuses": StatusCatalog(),
	})
}

// CreateEscrowRequest payload
type CreateEscrowRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

func (c *EscrowController) Create(ctx router.Context) error {
	actor := ActorFromRouter(ctx, c.ContextKey)
	if !actor.Authenticated() {
		return c.ErrorHandler(ctx, ErrUnauthorized)
	}

	payload := new(CreateEscrowRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse escrow payload").
			WithCode(goerrors.CodeBadRequest))
	}

	c.debugPayload("CREATE ESCROW", payload)

	record, err := c.Creator.Execute(ctx.Context(), CreateEscrowMessage{
		Title:       payload.Title,
		Description: payload.Description,
		Amount:      payload.Amount,
		Currency:    payload.Currency,
		SellerID:    actor.ID,
	})
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"escrow": record,
	})
}

func (c *EscrowController) List(ctx router.Context) error {
	actor := ActorFromRouter(ctx, c.ContextKey)

	var (
		records []*Escrow
		err     error
	)

	if status := strings.TrimSpace(ctx.Query("status")); status != "" {
		limit, _ := strconv.Atoi(ctx.Query("limit"))
		records, err = c.Reader.ListByStatus(ctx.Context(), actor, EscrowStatus(status), limit)
	} else {
		records, err = c.Reader.List(ctx.Context(), actor)
	}
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"escrows": records,
	})
}

func (c *EscrowController) Show(ctx router.Context) error {
	id, err := escrowIDParam(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	record, err := c.Reader.Get(ctx.Context(), ActorFromRouter(ctx, c.ContextKey), id)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"escrow": record,
	})
}

func (c *EscrowController) Logs(ctx router.Context) error {
	id, err := escrowIDParam(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	logs, err := c.Reader.Logs(ctx.Context(), ActorFromRouter(ctx, c.ContextKey), id)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"logs": logs,
	})
}

// JoinRequest payload
type JoinRequest struct {
	Code string `json:"code"`
}

// Validate will run validation rules
func (r JoinRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Code, validation.Required, validation.Length(4, 32)),
	)
}

func (c *EscrowController) Join(ctx router.Context) error {
	payload := new(JoinRequest)
	if err := c.bindAndValidate(ctx, payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	result, err := c.Machine.Join(ctx.Context(), ActorFromRouter(ctx, c.ContextKey), payload.Code)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, transitionResponse(result))
}

// ActionRequest payload
type ActionRequest struct {
	PaymentProof string `json:"payment_proof"`
	Reason       string `json:"reason"`
}

// Validate will run validation rules
func (r ActionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PaymentProof, validation.Length(0, 2048)),
		validation.Field(&r.Reason, validation.Length(0, 1000)),
	)
}

func (c *EscrowController) Act(ctx router.Context) error {
	id, err := escrowIDParam(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	action, err := ParseAction(ctx.Param("action"))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	payload := new(ActionRequest)
	if err := c.bindAndValidate(ctx, payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	opts := []TransitionOption{WithTransitionReason(payload.Reason)}
	if payload.PaymentProof != "" {
		opts = append(opts, WithPaymentProof(payload.PaymentProof))
	}

	result, err := c.Machine.Apply(ctx.Context(), ActorFromRouter(ctx, c.ContextKey), id, action, opts...)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, transitionResponse(result))
}

// SetStatusRequest payload
type SetStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Validate will run validation rules
func (r SetStatusRequest) Validate() error {
	allowed := make([]any, 0, len(allStatuses))
	for _, s := range allStatuses {
		allowed = append(allowed, string(s))
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(allowed...)),
		validation.Field(&r.Reason, validation.Length(0, 1000)),
	)
}

func (c *EscrowController) SetStatus(ctx router.Context) error {
	id, err := escrowIDParam(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	payload := new(SetStatusRequest)
	if err := c.bindAndValidate(ctx, payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	result, err := c.Machine.SetStatus(ctx.Context(), ActorFromRouter(ctx, c.ContextKey), id,
		EscrowStatus(payload.Status), WithTransitionReason(payload.Reason))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, transitionResponse(result))
}

func (c *EscrowController) ForceComplete(ctx router.Context) error {
	id, err := escrowIDParam(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	payload := new(ActionRequest)
	if err := c.bindAndValidate(ctx, payload); err != nil {
		return c.ErrorHandler(ctx, err)
	}

	result, err := c.Machine.ForceComplete(ctx.Context(), ActorFromRouter(ctx, c.ContextKey), id,
		WithTransitionReason(payload.Reason))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, transitionResponse(result))
}

func (c *EscrowController) bindAndValidate(ctx router.Context, payload validation.Validatable) error {
	if err := ctx.Bind(payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request payload").
			WithCode(goerrors.CodeBadRequest)
	}

	c.debugPayload("ESCROW REQUEST", payload)

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid request payload"); verr != nil {
		return verr.WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

func (c *EscrowController) debugPayload(title string, payload any) {
	if !c.Debug {
		return
	}
	c.Logger.Debug(title, "payload", print.MaybePrettyJSON(payload))
}

func escrowIDParam(ctx router.Context) (uuid.UUID, error) {
	raw := ctx.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, withMeta(ErrEscrowNotFound, map[string]any{
			"escrow_id": raw,
		})
	}
	return id, nil
}

func transitionResponse(result *TransitionResult) map[string]any {
	return map[string]any{
		"escrow":              result.Escrow,
		"from":                result.From,
		"to":                  result.To,
		"action":              result.Action,
		"audit_failed":        result.Audit.Failed(),
		"notification_failed": result.Notification.Failed(),
	}
}
