package escrow

import (
	"strings"
)

// EscrowStatus is the lifecycle state of an escrow transaction. Values are
// the lowercase snake_case strings exchanged with clients.
type EscrowStatus string

const (
	StatusCreated          EscrowStatus = "created"
	StatusWaitingPayment   EscrowStatus = "waiting_payment"
	StatusWaitingAdmin     EscrowStatus = "waiting_admin"
	StatusPaymentConfirmed EscrowStatus = "payment_confirmed"
	StatusInProgress       EscrowStatus = "in_progress"
	StatusCompleted        EscrowStatus = "completed"
	StatusOnHold           EscrowStatus = "on_hold"
	StatusRefunded         EscrowStatus = "refunded"
	StatusClosed           EscrowStatus = "closed"
)

var allStatuses = []EscrowStatus{
	StatusCreated,
	StatusWaitingPayment,
	StatusWaitingAdmin,
	StatusPaymentConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusOnHold,
	StatusRefunded,
	StatusClosed,
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []EscrowStatus {
	out := make([]EscrowStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Valid reports whether s is one of the known statuses.
func (s EscrowStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusWaitingPayment, StatusWaitingAdmin,
		StatusPaymentConfirmed, StatusInProgress, StatusCompleted,
		StatusOnHold, StatusRefunded, StatusClosed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s can never be left.
func (s EscrowStatus) IsTerminal() bool {
	return s == StatusRefunded || s == StatusClosed
}

func (s EscrowStatus) String() string {
	return string(s)
}

// ParseStatus resolves a wire value into an EscrowStatus.
func ParseStatus(value string) (EscrowStatus, error) {
	s := EscrowStatus(strings.TrimSpace(value))
	if !s.Valid() {
		return "", withMeta(ErrInvalidStatus, map[string]any{
			"status": value,
		})
	}
	return s, nil
}

// StatusInfo is display metadata for a status.
type StatusInfo struct {
	Status EscrowStatus `json:"status"`
	Label  string       `json:"label"`
	Color  string       `json:"color"`
}

var statusInfo = map[EscrowStatus]StatusInfo{
	StatusCreated:          {Status: StatusCreated, Label: "Created", Color: "gray"},
	StatusWaitingPayment:   {Status: StatusWaitingPayment, Label: "Waiting for Payment", Color: "yellow"},
	StatusWaitingAdmin:     {Status: StatusWaitingAdmin, Label: "Waiting for Admin", Color: "orange"},
	StatusPaymentConfirmed: {Status: StatusPaymentConfirmed, Label: "Payment Confirmed", Color: "blue"},
	StatusInProgress:       {Status: StatusInProgress, Label: "In Progress", Color: "indigo"},
	StatusCompleted:        {Status: StatusCompleted, Label: "Completed", Color: "green"},
	StatusOnHold:           {Status: StatusOnHold, Label: "On Hold", Color: "red"},
	StatusRefunded:         {Status: StatusRefunded, Label: "Refunded", Color: "purple"},
	StatusClosed:           {Status: StatusClosed, Label: "Closed", Color: "gray"},
}

// Info returns label and color for s. Unknown statuses echo the raw value.
func (s EscrowStatus) Info() StatusInfo {
	if info, ok := statusInfo[s]; ok {
		return info
	}
	return StatusInfo{Status: s, Label: string(s), Color: "gray"}
}

// StatusCatalogEntry describes a status together with its legal next steps.
type StatusCatalogEntry struct {
	StatusInfo
	Terminal bool           `json:"terminal"`
	Next     []EscrowStatus `json:"next"`
}

// StatusCatalog lists every status with display metadata and outgoing edges
// from the default graph.
func StatusCatalog() []StatusCatalogEntry {
	out := make([]StatusCatalogEntry, 0, len(allStatuses))
	for _, s := range allStatuses {
		out = append(out, StatusCatalogEntry{
			StatusInfo: s.Info(),
			Terminal:   s.IsTerminal(),
			Next:       NextStatuses(s),
		})
	}
	return out
}
