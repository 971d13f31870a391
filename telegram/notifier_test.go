package telegram_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-escrow"
	"github.com/goliatone/go-escrow/telegram"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[int64]error
}

func (s *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[chatID]; err != nil {
		return err
	}
	s.sent = append(s.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (s *fakeSender) Sent() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestFormatNotification(t *testing.T) {
	text := telegram.FormatNotification(escrow.Notification{
		Title: "Vintage camera",
		From:  escrow.StatusPaymentConfirmed,
		To:    escrow.StatusInProgress,
	})
	assert.Equal(t,
		"Escrow \"Vintage camera\" moved from "+escrow.StatusPaymentConfirmed.Info().Label+
			" to "+escrow.StatusInProgress.Info().Label+".",
		text)

	untitled := telegram.FormatNotification(escrow.Notification{
		EscrowID: "e-1",
		From:     escrow.StatusCreated,
		To:       escrow.StatusInProgress,
	})
	assert.Contains(t, untitled, "\"e-1\"")
}

func TestNotifier_SendsToLinkedRecipients(t *testing.T) {
	sessions := telegram.NewMemorySessionCache()
	_, err := sessions.Store("buyer", 11, "buyer")
	require.NoError(t, err)

	sender := &fakeSender{}
	notifier := telegram.NewNotifier(sender, sessions, nopLogger{})

	err = notifier.Notify(context.Background(), escrow.Notification{
		EscrowID:   "e-1",
		Title:      "Lamp",
		From:       escrow.StatusCreated,
		To:         escrow.StatusInProgress,
		ActorID:    "seller",
		Recipients: []string{"buyer", "unlinked"},
	})
	require.NoError(t, err)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(11), sent[0].ChatID)
	assert.Contains(t, sent[0].Text, "Lamp")
}

func TestNotifier_ReturnsFirstErrorAfterAllSends(t *testing.T) {
	sessions := telegram.NewMemorySessionCache()
	_, _ = sessions.Store("a", 1, "")
	_, _ = sessions.Store("b", 2, "")

	boom := errors.New("blocked")
	sender := &fakeSender{fail: map[int64]error{1: boom}}
	notifier := telegram.NewNotifier(sender, sessions, nil)

	err := notifier.Notify(context.Background(), escrow.Notification{
		EscrowID:   "e-1",
		From:       escrow.StatusInProgress,
		To:         escrow.StatusOnHold,
		Recipients: []string{"a", "b"},
	})
	require.ErrorIs(t, err, boom)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(2), sent[0].ChatID)
}
