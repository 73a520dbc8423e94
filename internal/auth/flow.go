// Package auth implements Sign-In with Ethereum against a wallet provider,
// with per-session nonce replay protection.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whalebounty/whalebounty/internal/domain"
)

// BaseChainID is Base mainnet.
const BaseChainID int64 = 8453

// Config describes how this app presents itself in SIWE messages.
type Config struct {
	Domain    string
	URI       string
	Statement string
	ChainID   int64
}

// DefaultConfig returns the production presentation on Base.
func DefaultConfig() Config {
	return Config{
		Domain:    "whale-bounty.vercel.app",
		URI:       "https://whale-bounty.vercel.app",
		Statement: "Sign in to Whale Bounty on Base.",
		ChainID:   BaseChainID,
	}
}

func (c Config) hexChainID() string {
	return fmt.Sprintf("0x%x", c.ChainID)
}

// ConnectResult is the wallet's answer to wallet_connect. When Supported is
// false the wallet lacks the method and the caller falls back to
// eth_requestAccounts plus personal_sign; the other fields are then empty.
type ConnectResult struct {
	Supported bool
	Address   string
	Message   string
	Signature string
}

type connectResponse struct {
	Accounts []struct {
		Address      string `json:"address"`
		Capabilities struct {
			SignInWithEthereum *struct {
				Message   string `json:"message"`
				Signature string `json:"signature"`
			} `json:"signInWithEthereum"`
		} `json:"capabilities"`
	} `json:"accounts"`
}

// Flow runs sign-ins. It is safe for concurrent use when its dependencies are.
type Flow struct {
	cfg      Config
	provider Provider
	nonces   domain.NonceStore
	verifier Verifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewFlow creates a Flow. provider may be nil when only Accept is used.
func NewFlow(cfg Config, provider Provider, nonces domain.NonceStore, verifier Verifier, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		cfg:      cfg,
		provider: provider,
		nonces:   nonces,
		verifier: verifier,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "auth_flow")),
	}
}

// SignIn drives the wallet through a full sign-in for session using nonce.
func (f *Flow) SignIn(ctx context.Context, session, nonce string) (domain.AuthResult, error) {
	if err := f.checkFresh(ctx, session, nonce); err != nil {
		return domain.AuthResult{}, err
	}
	if f.provider == nil {
		return domain.AuthResult{}, providerError("sign in", fmt.Errorf("no wallet provider configured"))
	}

	err := f.provider.Request(ctx, "wallet_switchEthereumChain",
		[]any{map[string]string{"chainId": f.cfg.hexChainID()}}, nil)
	if err != nil {
		return domain.AuthResult{}, providerError("wallet_switchEthereumChain", err)
	}

	res, err := f.connect(ctx, nonce)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !res.Supported {
		f.logger.InfoContext(ctx, "wallet_connect unsupported, using personal_sign")
		if res, err = f.fallback(ctx, nonce); err != nil {
			return domain.AuthResult{}, err
		}
	}
	return f.complete(ctx, session, nonce, res.Address, res.Message, res.Signature)
}

// Issue generates a nonce and records it as issued to session. Accept takes
// only nonces issued this way, to the same session.
func (f *Flow) Issue(ctx context.Context, session string) (string, error) {
	nonce := GenerateNonce()
	if err := f.nonces.Issue(ctx, session, nonce); err != nil {
		return "", fmt.Errorf("auth: issue nonce: %w", err)
	}
	return nonce, nil
}

// Accept finishes a sign-in whose message and signature were produced by a
// wallet elsewhere (typically the browser) and submitted to the server. The
// nonce must have been issued to session and not yet consumed.
func (f *Flow) Accept(ctx context.Context, session, nonce, address, message, signature string) (domain.AuthResult, error) {
	if err := f.checkFresh(ctx, session, nonce); err != nil {
		return domain.AuthResult{}, err
	}
	issued, err := f.nonces.IsIssued(ctx, session, nonce)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("auth: check nonce: %w", err)
	}
	if !issued {
		return domain.AuthResult{}, newError(CodeInvalidNonce, "Nonce was not issued to this session")
	}
	return f.complete(ctx, session, nonce, address, message, signature)
}

func (f *Flow) checkFresh(ctx context.Context, session, nonce string) error {
	used, err := f.nonces.IsUsed(ctx, session, nonce)
	if err != nil {
		return fmt.Errorf("auth: check nonce: %w", err)
	}
	if used {
		return newError(CodeNonceReused, "Invalid or reused nonce")
	}
	return nil
}

func (f *Flow) connect(ctx context.Context, nonce string) (ConnectResult, error) {
	params := []any{map[string]any{
		"version": "1",
		"capabilities": map[string]any{
			"signInWithEthereum": map[string]string{
				"nonce":   nonce,
				"chainId": f.cfg.hexChainID(),
			},
		},
	}}

	var resp connectResponse
	if err := f.provider.Request(ctx, "wallet_connect", params, &resp); err != nil {
		if isUnsupported(err) {
			return ConnectResult{}, nil
		}
		return ConnectResult{}, providerError("wallet_connect", err)
	}

	res := ConnectResult{Supported: true}
	if len(resp.Accounts) > 0 {
		acct := resp.Accounts[0]
		res.Address = acct.Address
		if siwe := acct.Capabilities.SignInWithEthereum; siwe != nil {
			res.Message = siwe.Message
			res.Signature = siwe.Signature
		}
	}
	return res, nil
}

func (f *Flow) fallback(ctx context.Context, nonce string) (ConnectResult, error) {
	var accounts []string
	if err := f.provider.Request(ctx, "eth_requestAccounts", []any{}, &accounts); err != nil {
		return ConnectResult{}, f.walletErr("eth_requestAccounts", err)
	}
	if len(accounts) == 0 || !common.IsHexAddress(accounts[0]) {
		return ConnectResult{}, newError(CodeNoAccounts, "No accounts returned")
	}
	address := accounts[0]

	message := f.Message(address, nonce)

	var signature string
	if err := f.provider.Request(ctx, "personal_sign", []any{message, address}, &signature); err != nil {
		return ConnectResult{}, f.walletErr("personal_sign", err)
	}
	return ConnectResult{Address: address, Message: message, Signature: signature}, nil
}

// Message renders the EIP-4361 message address is asked to sign for nonce.
func (f *Flow) Message(address, nonce string) string {
	return SIWEMessage{
		Domain:    f.cfg.Domain,
		Address:   common.HexToAddress(address),
		Statement: f.cfg.Statement,
		URI:       f.cfg.URI,
		ChainID:   f.cfg.ChainID,
		Nonce:     nonce,
		IssuedAt:  f.now(),
	}.String()
}

func (f *Flow) walletErr(method string, err error) error {
	if isUnsupported(err) {
		return &Error{Code: CodeMethodNotSupported, Message: method + " is not supported by this wallet", Err: err}
	}
	return providerError(method, err)
}

// complete checks the nonce and the message, consumes the nonce and verifies
// the signature. The nonce is consumed only once the message is known to
// carry it and to be addressed to this app, and before the signature check so
// a failed verification still burns it.
func (f *Flow) complete(ctx context.Context, session, nonce, address, message, signature string) (domain.AuthResult, error) {
	if message == "" || signature == "" {
		return domain.AuthResult{}, newError(CodeNoSignature, "Sign in with Ethereum was not completed")
	}
	if got, ok := ExtractNonce(message); !ok || got != nonce {
		return domain.AuthResult{}, newError(CodeInvalidNonce, "Invalid nonce in message")
	}
	if err := f.checkMessage(message, address); err != nil {
		f.logger.WarnContext(ctx, "sign-in message rejected",
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return domain.AuthResult{}, err
	}

	if err := f.nonces.MarkUsed(ctx, session, nonce); err != nil {
		return domain.AuthResult{}, fmt.Errorf("auth: consume nonce: %w", err)
	}

	valid, err := f.verifier.VerifyMessage(ctx, address, message, signature)
	if err != nil {
		return domain.AuthResult{}, providerError("verify signature", err)
	}
	if !valid {
		f.logger.WarnContext(ctx, "signature rejected", slog.String("address", address))
		return domain.AuthResult{}, newError(CodeInvalidSignature, "Signature verification failed")
	}

	addr := common.HexToAddress(address).Hex()
	f.logger.InfoContext(ctx, "sign-in verified", slog.String("address", addr))
	return domain.AuthResult{Address: addr, Message: message, Signature: signature}, nil
}

// checkMessage requires message to be addressed to this app's domain and
// chain, on behalf of address.
func (f *Flow) checkMessage(message, address string) error {
	m, err := ParseSIWEMessage(message)
	if err != nil {
		return &Error{Code: CodeInvalidMessage, Message: "Malformed sign-in message", Err: err}
	}
	switch {
	case !strings.EqualFold(m.Domain, f.cfg.Domain):
		return newError(CodeInvalidMessage, "Message is for another domain")
	case m.ChainID != f.cfg.ChainID:
		return newError(CodeInvalidMessage, "Message is for another chain")
	case !common.IsHexAddress(address) || m.Address != common.HexToAddress(address):
		return newError(CodeInvalidMessage, "Message is for another address")
	}
	return nil
}
