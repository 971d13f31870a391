package escrow

import (
	"context"

	"github.com/google/uuid"
)

// EscrowReader serves read access to escrows. Parties see their own
// escrows; admins see every escrow.
type EscrowReader interface {
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*Escrow, error)
	List(ctx context.Context, actor Actor) ([]*Escrow, error)
	ListByStatus(ctx context.Context, actor Actor, status EscrowStatus, limit int) ([]*Escrow, error)
	Logs(ctx context.Context, actor Actor, id uuid.UUID) ([]*StatusLog, error)
}

type escrowReader struct {
	escrows Escrows
	logs    StatusLogs
}

// NewEscrowReader returns the default EscrowReader.
func NewEscrowReader(repo RepositoryManager) EscrowReader {
	return &escrowReader{
		escrows: repo.Escrows(),
		logs:    repo.StatusLogs(),
	}
}

func (r *escrowReader) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Escrow, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	esc, err := r.escrows.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !anyParty(actor, esc) {
		return nil, withMeta(ErrForbidden, map[string]any{
			"escrow_id": id.String(),
		})
	}

	if !esc.IsSeller(actor.ID) && !actor.IsAdmin() {
		esc.JoinCode = ""
	}

	return esc, nil
}

func (r *escrowReader) List(ctx context.Context, actor Actor) ([]*Escrow, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	userID, err := uuid.Parse(actor.ID)
	if err != nil {
		return []*Escrow{}, nil
	}

	records, err := r.escrows.ListByParty(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, esc := range records {
		if !esc.IsSeller(actor.ID) {
			esc.JoinCode = ""
		}
	}
	return records, nil
}

func (r *escrowReader) ListByStatus(ctx context.Context, actor Actor, status EscrowStatus, limit int) ([]*Escrow, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	if !status.Valid() {
		return nil, withMeta(ErrInvalidStatus, map[string]any{
			"status": status,
		})
	}

	return r.escrows.ListByStatus(ctx, status, limit)
}

func (r *escrowReader) Logs(ctx context.Context, actor Actor, id uuid.UUID) ([]*StatusLog, error) {
	if _, err := r.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return r.logs.ListByEscrow(ctx, id)
}
