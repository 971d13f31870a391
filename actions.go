package escrow

import (
	"strings"

	"github.com/google/uuid"
)

// Action is a status-changing business operation exposed to clients.
type Action string

const (
	ActionJoin            Action = "join"
	ActionSubmitPayment   Action = "submit_payment"
	ActionConfirmPayment  Action = "confirm_payment"
	ActionMarkDelivered   Action = "mark_delivered"
	ActionConfirmReceived Action = "confirm_received"
	ActionReleaseFunds    Action = "release_funds"
	ActionHold            Action = "hold"
	ActionRefund          Action = "refund"
	ActionSetStatus       Action = "set_status"
	ActionForceComplete   Action = "force_complete"
)

// actionRule binds an action to its fixed target and the caller gate that
// runs before the graph is consulted.
type actionRule struct {
	target    EscrowStatus
	authorize func(actor Actor, esc *Escrow) bool
}

func adminOnly(actor Actor, _ *Escrow) bool {
	return actor.IsAdmin()
}

func buyerOnly(actor Actor, esc *Escrow) bool {
	return esc.IsBuyer(actor.ID)
}

func sellerOnly(actor Actor, esc *Escrow) bool {
	return esc.IsSeller(actor.ID)
}

func anyParty(actor Actor, esc *Escrow) bool {
	return actor.IsAdmin() || esc.IsBuyer(actor.ID) || esc.IsSeller(actor.ID)
}

// prospectiveBuyer admits any non admin user but the seller. Admins confirm
// payments, so they may not become a party. A second buyer is stopped by
// the graph: only created leads to waiting_payment.
func prospectiveBuyer(actor Actor, esc *Escrow) bool {
	if actor.IsAdmin() {
		return false
	}
	if _, err := uuid.Parse(actor.ID); err != nil {
		return false
	}
	return !esc.IsSeller(actor.ID)
}

var actionRules = map[Action]actionRule{
	ActionJoin:            {target: StatusWaitingPayment, authorize: prospectiveBuyer},
	ActionSubmitPayment:   {target: StatusWaitingAdmin, authorize: buyerOnly},
	ActionConfirmPayment:  {target: StatusPaymentConfirmed, authorize: adminOnly},
	ActionMarkDelivered:   {target: StatusInProgress, authorize: sellerOnly},
	ActionConfirmReceived: {target: StatusCompleted, authorize: buyerOnly},
	ActionReleaseFunds:    {target: StatusClosed, authorize: adminOnly},
	ActionHold:            {target: StatusOnHold, authorize: anyParty},
	ActionRefund:          {target: StatusRefunded, authorize: adminOnly},
}

// ParseAction resolves the wire name of a fixed-target action. set_status
// and force_complete have their own entry points and are not accepted here.
func ParseAction(value string) (Action, error) {
	a := Action(strings.TrimSpace(strings.ToLower(value)))
	if _, ok := actionRules[a]; !ok {
		return "", withMeta(ErrInvalidAction, map[string]any{
			"action": value,
		})
	}
	return a, nil
}

// Target returns the fixed target status of the action, if it has one.
func (a Action) Target() (EscrowStatus, bool) {
	rule, ok := actionRules[a]
	if !ok {
		return "", false
	}
	return rule.target, true
}

// FixedActions lists every action with a fixed target.
func FixedActions() []Action {
	return []Action{
		ActionJoin,
		ActionSubmitPayment,
		ActionConfirmPayment,
		ActionMarkDelivered,
		ActionConfirmReceived,
		ActionReleaseFunds,
		ActionHold,
		ActionRefund,
	}
}
