package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/whalebounty/whalebounty/internal/crypto"
)

// LocalWallet is an in-process Provider backed by a private key. It serves
// development, the simulate mode and tests; production sign-ins come from
// the user's wallet.
type LocalWallet struct {
	signer          *crypto.Signer
	cfg             Config
	supportsConnect bool
	now             func() time.Time
}

// NewLocalWallet wraps signer. When supportsConnect is false the wallet
// rejects wallet_connect, like embedded mini-app webviews do.
func NewLocalWallet(signer *crypto.Signer, cfg Config, supportsConnect bool) *LocalWallet {
	return &LocalWallet{signer: signer, cfg: cfg, supportsConnect: supportsConnect, now: time.Now}
}

// LoadLocalWallet resolves the key from src and builds a LocalWallet.
func LoadLocalWallet(src crypto.KeySource, cfg Config, supportsConnect bool) (*LocalWallet, error) {
	key, err := crypto.LoadKey(src)
	if err != nil {
		return nil, fmt.Errorf("auth: load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key)
	if err != nil {
		return nil, fmt.Errorf("auth: load wallet key: %w", err)
	}
	return NewLocalWallet(signer, cfg, supportsConnect), nil
}

// Address returns the wallet's account.
func (w *LocalWallet) Address() common.Address {
	return w.signer.Address()
}

func (w *LocalWallet) Request(ctx context.Context, method string, params []any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var result any
	switch method {
	case "wallet_switchEthereumChain":
		var req []struct {
			ChainID string `json:"chainId"`
		}
		if err := remarshal(params, &req); err != nil || len(req) == 0 {
			return fmt.Errorf("auth: wallet_switchEthereumChain: bad params")
		}
		if want := w.cfg.hexChainID(); !strings.EqualFold(req[0].ChainID, want) {
			return fmt.Errorf("auth: wallet_switchEthereumChain: unknown chain %s", req[0].ChainID)
		}

	case "wallet_connect":
		if !w.supportsConnect {
			return fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
		}
		var req []struct {
			Capabilities struct {
				SignInWithEthereum struct {
					Nonce string `json:"nonce"`
				} `json:"signInWithEthereum"`
			} `json:"capabilities"`
		}
		if err := remarshal(params, &req); err != nil || len(req) == 0 {
			return fmt.Errorf("auth: wallet_connect: bad params")
		}
		msg := w.message(req[0].Capabilities.SignInWithEthereum.Nonce)
		sig, err := w.signer.SignPersonal([]byte(msg))
		if err != nil {
			return err
		}
		result = map[string]any{
			"accounts": []any{map[string]any{
				"address": w.Address().Hex(),
				"capabilities": map[string]any{
					"signInWithEthereum": map[string]string{"message": msg, "signature": sig},
				},
			}},
		}

	case "eth_requestAccounts", "eth_accounts":
		result = []string{w.Address().Hex()}

	case "personal_sign":
		if len(params) == 0 {
			return fmt.Errorf("auth: personal_sign: missing message")
		}
		msg, ok := params[0].(string)
		if !ok {
			return fmt.Errorf("auth: personal_sign: message must be a string")
		}
		data := []byte(msg)
		if b, err := hexutil.Decode(msg); err == nil {
			data = b
		}
		sig, err := w.signer.SignPersonal(data)
		if err != nil {
			return err
		}
		result = sig

	default:
		return fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
	}

	if out == nil || result == nil {
		return nil
	}
	return remarshal(result, out)
}

func (w *LocalWallet) message(nonce string) string {
	return SIWEMessage{
		Domain:    w.cfg.Domain,
		Address:   w.Address(),
		Statement: w.cfg.Statement,
		URI:       w.cfg.URI,
		ChainID:   w.cfg.ChainID,
		Nonce:     nonce,
		IssuedAt:  w.now(),
	}.String()
}

// remarshal converts in to out through JSON, mirroring what a JSON-RPC
// transport would do.
func remarshal(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
