package escrow

import (
	"crypto/rand"
	"math/big"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// JoinCodeLength is the number of symbols in a generated join code.
const JoinCodeLength = 8

// no 0/O or 1/I/L
const joinCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateJoinCode returns a random code a buyer can type to join an escrow.
func GenerateJoinCode() (string, error) {
	max := big.NewInt(int64(len(joinCodeAlphabet)))
	var b strings.Builder
	b.Grow(JoinCodeLength)
	for i := 0; i < JoinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate join code")
		}
		b.WriteByte(joinCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeJoinCode uppercases and strips separators users commonly type.
func NormalizeJoinCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}
