package escrow

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Escrows() Escrows
	StatusLogs() StatusLogs
}

type mngr struct {
	db         *bun.DB
	escrows    Escrows
	statusLogs StatusLogs
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:         db,
		escrows:    NewEscrowsRepository(db),
		statusLogs: NewStatusLogsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.escrows == nil {
		return errors.New("repository escrows should be initialized")
	}

	if m.statusLogs == nil {
		return errors.New("repository statusLogs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Escrows() Escrows {
	return m.escrows
}

func (m mngr) StatusLogs() StatusLogs {
	return m.statusLogs
}
