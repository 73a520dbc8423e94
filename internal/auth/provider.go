package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrMethodNotSupported is returned by providers that do not implement a
// requested wallet method.
var ErrMethodNotSupported = errors.New("auth: method_not_supported")

// EIP-1193 and JSON-RPC codes for "I don't do that".
const (
	codeUnsupportedMethod = 4200
	codeMethodNotFound    = -32601
)

// Provider is an EIP-1193 style wallet. Request sends method with params and
// decodes the result into out (which may be nil).
type Provider interface {
	Request(ctx context.Context, method string, params []any, out any) error
}

// isUnsupported reports whether err means the wallet lacks the method.
func isUnsupported(err error) bool {
	if errors.Is(err, ErrMethodNotSupported) {
		return true
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUnsupportedMethod, codeMethodNotFound:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "method_not_supported") || strings.Contains(msg, "not supported")
}

// RPCProvider forwards wallet requests over JSON-RPC, e.g. to a wallet bridge
// or a node with unlocked accounts.
type RPCProvider struct {
	client *rpc.Client
}

// DialRPCProvider connects to the JSON-RPC endpoint at url.
func DialRPCProvider(ctx context.Context, url string) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("auth: dial wallet rpc: %w", err)
	}
	return &RPCProvider{client: c}, nil
}

// NewRPCProvider wraps an existing client.
func NewRPCProvider(c *rpc.Client) *RPCProvider {
	return &RPCProvider{client: c}
}

func (p *RPCProvider) Request(ctx context.Context, method string, params []any, out any) error {
	return p.client.CallContext(ctx, out, method, params...)
}

// Close releases the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}
