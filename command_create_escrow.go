package escrow

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateEscrowMessage opens a new escrow on behalf of a seller.
type CreateEscrowMessage struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	SellerID    string `json:"-"`
}

func (e CreateEscrowMessage) Type() string { return "escrow.create" }

// Validate will run validation rules
func (e CreateEscrowMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Title, validation.Required, validation.Length(3, 200)),
		validation.Field(&e.Description, validation.Length(0, 4000)),
		validation.Field(&e.Amount, validation.Required, validation.Min(int64(1))),
		validation.Field(&e.Currency, validation.Required, validation.Length(3, 3), is.UpperCase),
		validation.Field(&e.SellerID, validation.Required, is.UUID),
	)
}

// CreateEscrowHandler stores the escrow in created status together with
// its first status log row.
type CreateEscrowHandler struct {
	repo         RepositoryManager
	activitySink ActivitySink
	logger       Logger
	now          func() time.Time
	codes        func() (string, error)
}

// NewCreateEscrowHandler returns a handler bound to repo.
func NewCreateEscrowHandler(repo RepositoryManager) *CreateEscrowHandler {
	return &CreateEscrowHandler{
		repo:         repo,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
		codes:        GenerateJoinCode,
	}
}

// WithActivitySink sets the sink that receives escrow.created events.
func (h *CreateEscrowHandler) WithActivitySink(sink ActivitySink) *CreateEscrowHandler {
	h.activitySink = normalizeActivitySink(sink)
	return h
}

// WithLogger sets the handler logger.
func (h *CreateEscrowHandler) WithLogger(logger Logger) *CreateEscrowHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock injects a custom clock.
func (h *CreateEscrowHandler) WithClock(clock func() time.Time) *CreateEscrowHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithJoinCodeGenerator replaces GenerateJoinCode.
func (h *CreateEscrowHandler) WithJoinCodeGenerator(gen func() (string, error)) *CreateEscrowHandler {
	if gen != nil {
		h.codes = gen
	}
	return h
}

func (h *CreateEscrowHandler) Execute(ctx context.Context, event CreateEscrowMessage) (*Escrow, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during escrow creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateEscrowHandler) execute(ctx context.Context, event CreateEscrowMessage) (*Escrow, error) {
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	event.Title = strings.TrimSpace(event.Title)

	if verr := goerrors.ValidateWithOzzo(event.Validate, "invalid escrow payload"); verr != nil {
		return nil, verr.WithCode(goerrors.CodeBadRequest)
	}

	sellerID, err := uuid.Parse(event.SellerID)
	if err != nil {
		return nil, ErrUnauthorized
	}

	code, err := h.codes()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := h.now().UTC()
	record := &Escrow{
		ID:          uuid.New(),
		Title:       event.Title,
		Description: event.Description,
		Amount:      event.Amount,
		Currency:    event.Currency,
		SellerID:    sellerID,
		JoinCode:    code,
		Status:      StatusCreated,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := h.repo.Escrows().CreateTx(ctx, tx, record)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create escrow")
		}
		record = created

		_, err = h.repo.StatusLogs().AppendTx(ctx, tx, &StatusLog{
			EscrowID:  record.ID,
			Status:    StatusCreated,
			ChangedBy: event.SellerID,
			CreatedAt: now,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not record initial status")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "escrow creation transaction failed")
	}

	if err := h.activitySink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventCreated,
		Actor:      Actor{ID: event.SellerID, Role: RoleUser},
		EscrowID:   record.ID.String(),
		ToStatus:   StatusCreated,
		OccurredAt: now,
	}); err != nil {
		h.logger.Warn("escrow created activity sink error", "escrow_id", record.ID.String(), "error", err)
	}

	return record, nil
}
