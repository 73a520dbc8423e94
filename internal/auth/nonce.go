package auth

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// noncePattern finds the nonce in a SIWE message, either on the "Nonce:" line
// or after "at" in wallets that phrase it inline.
var noncePattern = regexp.MustCompile(`(?i)(?:nonce:|at)\s*(\w{32,})`)

// GenerateNonce returns a fresh 32-character lowercase hex nonce.
func GenerateNonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ExtractNonce returns the nonce embedded in message.
func ExtractNonce(message string) (string, bool) {
	m := noncePattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	return m[1], true
}
