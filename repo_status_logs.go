package escrow

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// StatusLogs is the append-only audit trail of escrow transitions.
type StatusLogs interface {
	Append(ctx context.Context, entry *StatusLog) (*StatusLog, error)
	AppendTx(ctx context.Context, tx bun.IDB, entry *StatusLog) (*StatusLog, error)
	ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*StatusLog, error)
}

type statusLogs struct {
	repository.Repository[*StatusLog]
	db  *bun.DB
	now func() time.Time
}

var _ StatusLogs = (*statusLogs)(nil)

// NewStatusLogsRepository returns the bun backed audit log repository.
func NewStatusLogsRepository(db *bun.DB) StatusLogs {
	handlers := repository.ModelHandlers[*StatusLog]{
		NewRecord: func() *StatusLog {
			return &StatusLog{}
		},
		GetID: func(record *StatusLog) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *StatusLog, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "escrow_id"
		},
	}

	return &statusLogs{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
		now:        time.Now,
	}
}

func (r *statusLogs) Append(ctx context.Context, entry *StatusLog) (*StatusLog, error) {
	return r.AppendTx(ctx, r.db, entry)
}

func (r *statusLogs) AppendTx(ctx context.Context, tx bun.IDB, entry *StatusLog) (*StatusLog, error) {
	if entry == nil {
		return nil, goerrors.New("status log entry required", goerrors.CategoryBadInput)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	return r.Repository.CreateTx(ctx, tx, entry)
}

func (r *statusLogs) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*StatusLog, error) {
	records := []*StatusLog{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.escrow_id = ?", escrowID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list status logs")
	}
	return records, nil
}
