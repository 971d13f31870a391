package telegram

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-escrow/ephemeral"
)

// LinkToken is handed to an authenticated user who wants chat alerts.
type LinkToken struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// Linker binds users to Telegram chats through single use deep link tokens.
type Linker struct {
	tokens   ephemeral.Store
	sessions SessionCache
	botName  string
}

// NewLinker returns a Linker issuing links for botName.
func NewLinker(tokens ephemeral.Store, sessions SessionCache, botName string) *Linker {
	return &Linker{
		tokens:   tokens,
		sessions: sessions,
		botName:  strings.TrimPrefix(strings.TrimSpace(botName), "@"),
	}
}

// IssueLink creates a token for userID and the bot deep link carrying it.
func (l *Linker) IssueLink(userID string) (LinkToken, error) {
	token, err := l.tokens.Issue(userID)
	if err != nil {
		return LinkToken{}, err
	}
	return LinkToken{
		Token: token,
		URL:   fmt.Sprintf("https://t.me/%s?start=%s", l.botName, token),
	}, nil
}

// Complete consumes token and links the chat to its user. A spent, expired
// or unknown token returns false.
func (l *Linker) Complete(token string, chatID int64, username string) (Session, bool) {
	userID, ok := l.tokens.Consume(strings.TrimSpace(token))
	if !ok {
		return Session{}, false
	}

	if _, err := l.sessions.Store(userID, chatID, username); err != nil {
		return Session{}, false
	}
	return l.sessions.GetLatest(userID)
}

// ParseStartCommand extracts the payload of a "/start <token>" message.
// "/start@bot <token>" is accepted as well.
func ParseStartCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return "", false
	}
	cmd := fields[0]
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	if cmd != "/start" {
		return "", false
	}
	return fields[1], true
}
