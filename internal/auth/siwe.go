package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SIWEMessage holds the fields of an EIP-4361 sign-in message.
type SIWEMessage struct {
	Domain    string
	Address   common.Address
	Statement string
	URI       string
	ChainID   int64
	Nonce     string
	IssuedAt  time.Time
}

// String renders the message in the EIP-4361 text form that wallets display
// and sign.
func (m SIWEMessage) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", m.Domain)
	b.WriteString(m.Address.Hex())
	b.WriteString("\n\n")
	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "URI: %s\n", m.URI)
	b.WriteString("Version: 1\n")
	fmt.Fprintf(&b, "Chain ID: %d\n", m.ChainID)
	fmt.Fprintf(&b, "Nonce: %s\n", m.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", m.IssuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

const siweHeader = " wants you to sign in with your Ethereum account:"

var errMalformedMessage = errors.New("not an EIP-4361 message")

// ParseSIWEMessage reads an EIP-4361 message back into its fields. The domain
// line, the address line and Chain ID are required; URI, Nonce and Issued At
// are filled in when present.
func ParseSIWEMessage(message string) (SIWEMessage, error) {
	lines := strings.Split(strings.ReplaceAll(message, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return SIWEMessage{}, errMalformedMessage
	}
	domain, ok := strings.CutSuffix(lines[0], siweHeader)
	if !ok || domain == "" {
		return SIWEMessage{}, errMalformedMessage
	}
	addr := strings.TrimSpace(lines[1])
	if !common.IsHexAddress(addr) {
		return SIWEMessage{}, fmt.Errorf("%w: bad address line", errMalformedMessage)
	}

	m := SIWEMessage{Domain: domain, Address: common.HexToAddress(addr)}
	var haveChain bool
	for _, line := range lines[2:] {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		switch key {
		case "URI":
			m.URI = value
		case "Chain ID":
			id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return SIWEMessage{}, fmt.Errorf("%w: bad chain id", errMalformedMessage)
			}
			m.ChainID, haveChain = id, true
		case "Nonce":
			m.Nonce = value
		case "Issued At":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				m.IssuedAt = t
			}
		}
	}
	if !haveChain {
		return SIWEMessage{}, fmt.Errorf("%w: missing chain id", errMalformedMessage)
	}
	return m, nil
}
