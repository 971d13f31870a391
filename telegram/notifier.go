package telegram

import (
	"context"
	"fmt"

	"github.com/goliatone/go-escrow"
)

// Notifier sends escrow status changes to the linked chats of the
// recipients. Recipients without a live link are skipped.
type Notifier struct {
	sender   Sender
	sessions SessionCache
	logger   escrow.Logger
}

var _ escrow.Notifier = (*Notifier)(nil)

// NewNotifier returns a Notifier that resolves chats through sessions.
func NewNotifier(sender Sender, sessions SessionCache, logger escrow.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		sessions: sessions,
		logger:   logger,
	}
}

// Notify delivers to every linked recipient and returns the first error
// after all sends were attempted.
func (n *Notifier) Notify(ctx context.Context, msg escrow.Notification) error {
	text := FormatNotification(msg)

	var first error
	for _, userID := range msg.Recipients {
		chatID, ok := n.sessions.GetExternalID(userID)
		if !ok {
			n.debug("telegram recipient not linked", "user_id", userID, "escrow_id", msg.EscrowID)
			continue
		}

		if err := n.sender.SendMessage(ctx, chatID, text); err != nil {
			if first == nil {
				first = err
			}
			if n.logger != nil {
				n.logger.Warn("telegram send failed", "user_id", userID, "escrow_id", msg.EscrowID, "error", err)
			}
		}
	}
	return first
}

func (n *Notifier) debug(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}

// FormatNotification renders the chat text for a status change.
func FormatNotification(msg escrow.Notification) string {
	title := msg.Title
	if title == "" {
		title = msg.EscrowID
	}
	return fmt.Sprintf("Escrow \"%s\" moved from %s to %s.",
		title, msg.From.Info().Label, msg.To.Info().Label)
}
