package escrow

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Escrows is the persistence boundary for escrow records. Reads always hit
// the store; status writes are conditional on the observed status.
type Escrows interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Escrow, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Escrow, error)
	GetByJoinCode(ctx context.Context, code string) (*Escrow, error)
	Create(ctx context.Context, record *Escrow) (*Escrow, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Escrow) (*Escrow, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target EscrowStatus, opts ...StatusUpdateOption) (*Escrow, error)
	UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, expected, target EscrowStatus, opts ...StatusUpdateOption) (*Escrow, error)
	ListByParty(ctx context.Context, userID uuid.UUID) ([]*Escrow, error)
	ListByStatus(ctx context.Context, status EscrowStatus, limit int) ([]*Escrow, error)
}

// StatusUpdateOption sets extra columns in the same write as a status change.
type StatusUpdateOption func(*statusUpdate)

type statusUpdate struct {
	columns []string
	values  []any
}

func (u *statusUpdate) set(column string, value any) {
	for i, c := range u.columns {
		if c == column {
			u.values[i] = value
			return
		}
	}
	u.columns = append(u.columns, column)
	u.values = append(u.values, value)
}

// WithBuyer records the buyer joining the escrow.
func WithBuyer(id uuid.UUID) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.set("buyer_id", id)
	}
}

// WithPaymentProofRef records a reference to the uploaded payment proof.
func WithPaymentProofRef(ref string) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.set("payment_proof", ref)
	}
}

type escrows struct {
	repository.Repository[*Escrow]
	db  *bun.DB
	now func() time.Time
}

var _ Escrows = (*escrows)(nil)

// EscrowsOption customizes the escrow repository.
type EscrowsOption func(*escrows)

// WithEscrowsClock injects the clock used for updated_at.
func WithEscrowsClock(clock func() time.Time) EscrowsOption {
	return func(r *escrows) {
		if clock != nil {
			r.now = clock
		}
	}
}

// NewEscrowsRepository returns the bun backed escrow repository.
func NewEscrowsRepository(db *bun.DB, opts ...EscrowsOption) Escrows {
	repo := repository.NewRepository[*Escrow](db, repository.ModelHandlers[*Escrow]{
		NewRecord: func() *Escrow { return &Escrow{} },
		GetID: func(e *Escrow) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *Escrow, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
		GetIdentifier: func() string {
			return "join_code"
		},
	})

	r := &escrows{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

func (r *escrows) GetByID(ctx context.Context, id uuid.UUID) (*Escrow, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *escrows) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Escrow, error) {
	record := &Escrow{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, withMeta(ErrEscrowNotFound, map[string]any{
				"escrow_id": id.String(),
			})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load escrow")
	}
	return record, nil
}

func (r *escrows) GetByJoinCode(ctx context.Context, code string) (*Escrow, error) {
	code = NormalizeJoinCode(code)
	if code == "" {
		return nil, ErrInvalidJoinCode
	}

	record := &Escrow{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.join_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidJoinCode
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load escrow by join code")
	}
	return record, nil
}

func (r *escrows) Create(ctx context.Context, record *Escrow) (*Escrow, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *escrows) CreateTx(ctx context.Context, tx bun.IDB, record *Escrow) (*Escrow, error) {
	r.prepareDefaults(record)
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *escrows) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target EscrowStatus, opts ...StatusUpdateOption) (*Escrow, error) {
	return r.UpdateStatusIfTx(ctx, r.db, id, expected, target, opts...)
}

// UpdateStatusIfTx writes target only while the row still holds expected.
// Zero affected rows means the escrow is gone or another writer won.
func (r *escrows) UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, expected, target EscrowStatus, opts ...StatusUpdateOption) (*Escrow, error) {
	update := &statusUpdate{}
	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	q := tx.NewUpdate().
		Model((*Escrow)(nil)).
		Set("status = ?", target).
		Set("updated_at = ?", r.now().UTC())

	for i, column := range update.columns {
		q = q.Set("? = ?", bun.Ident(column), update.values[i])
	}

	res, err := q.
		Where("id = ?", id).
		Where("status = ?", expected).
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update escrow status")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}

	if affected == 0 {
		current, err := r.GetByIDTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		return nil, withMeta(ErrConcurrentModification, map[string]any{
			"escrow_id": id.String(),
			"expected":  expected,
			"actual":    current.Status,
		})
	}

	return r.GetByIDTx(ctx, tx, id)
}

func (r *escrows) ListByParty(ctx context.Context, userID uuid.UUID) ([]*Escrow, error) {
	records := []*Escrow{}
	err := r.db.NewSelect().
		Model(&records).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.seller_id = ?", userID).
				WhereOr("?TableAlias.buyer_id = ?", userID)
		}).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list escrows")
	}
	return records, nil
}

// ListByStatus backs the admin queues, oldest first.
func (r *escrows) ListByStatus(ctx context.Context, status EscrowStatus, limit int) ([]*Escrow, error) {
	if limit <= 0 {
		limit = 100
	}

	records := []*Escrow{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.status = ?", status).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list escrows by status")
	}
	return records, nil
}

func (r *escrows) prepareDefaults(record *Escrow) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.Status == "" {
		record.Status = StatusCreated
	}

	record.JoinCode = NormalizeJoinCode(record.JoinCode)
	record.Currency = strings.ToUpper(strings.TrimSpace(record.Currency))

	now := r.now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
