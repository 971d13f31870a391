package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Escrow is a marketplace transaction held in escrow. Status must only be
// changed through the EscrowStateMachine.
type Escrow struct {
	bun.BaseModel `bun:"table:escrows,alias:esc"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Title         string       `bun:"title,notnull" json:"title"`
	Description   string       `bun:"description" json:"description,omitempty"`
	Amount        int64        `bun:"amount,notnull" json:"amount"`
	Currency      string       `bun:"currency,notnull" json:"currency"`
	SellerID      uuid.UUID    `bun:"seller_id,notnull,type:uuid" json:"seller_id"`
	BuyerID       *uuid.UUID   `bun:"buyer_id,nullzero,type:uuid" json:"buyer_id,omitempty"`
	JoinCode      string       `bun:"join_code,notnull,unique" json:"join_code,omitempty"`
	Status        EscrowStatus `bun:"status,notnull" json:"status"`
	PaymentProof  string       `bun:"payment_proof" json:"payment_proof,omitempty"`
	CreatedAt     *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsSeller reports whether userID created the escrow.
func (e *Escrow) IsSeller(userID string) bool {
	return e != nil && userID != "" && e.SellerID.String() == userID
}

// IsBuyer reports whether userID joined the escrow as buyer.
func (e *Escrow) IsBuyer(userID string) bool {
	return e != nil && e.BuyerID != nil && userID != "" && e.BuyerID.String() == userID
}

// HasBuyer reports whether a buyer joined.
func (e *Escrow) HasBuyer() bool {
	return e != nil && e.BuyerID != nil && *e.BuyerID != uuid.Nil
}

// Parties returns the user ids attached to the escrow.
func (e *Escrow) Parties() []string {
	if e == nil {
		return nil
	}
	out := []string{e.SellerID.String()}
	if e.HasBuyer() {
		out = append(out, e.BuyerID.String())
	}
	return out
}

// StatusLog is the append-only audit row written once per transition.
type StatusLog struct {
	bun.BaseModel `bun:"table:status_logs,alias:stl"`
	ID            uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id"`
	EscrowID      uuid.UUID    `bun:"escrow_id,notnull,type:uuid" json:"escrow_id"`
	Status        EscrowStatus `bun:"status,notnull" json:"status"`
	ChangedBy     string       `bun:"changed_by" json:"changed_by,omitempty"`
	CreatedAt     time.Time    `bun:"created_at,notnull" json:"created_at"`
}
