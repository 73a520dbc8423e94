package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whalebounty/whalebounty/internal/crypto"
	"github.com/whalebounty/whalebounty/internal/store/memory"
)

// scriptedProvider answers wallet methods from fixed tables.
type scriptedProvider struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (p *scriptedProvider) Request(_ context.Context, method string, _ []any, out any) error {
	p.calls = append(p.calls, method)
	if err, ok := p.errs[method]; ok {
		return err
	}
	r, ok := p.results[method]
	if !ok || out == nil {
		return nil
	}
	return remarshal(r, out)
}

func newSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	pk, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return crypto.NewSignerFromKey(pk)
}

func newFlow(p Provider, nonces *memory.NonceStore) *Flow {
	return NewFlow(DefaultConfig(), p, nonces, NewChainVerifier(nil, nil), nil)
}

func signedMessage(t *testing.T, s *crypto.Signer, nonce string) (string, string) {
	t.Helper()
	cfg := DefaultConfig()
	msg := SIWEMessage{
		Domain: cfg.Domain, Address: s.Address(), Statement: cfg.Statement,
		URI: cfg.URI, ChainID: cfg.ChainID, Nonce: nonce, IssuedAt: time.Now(),
	}.String()
	sig, err := s.SignPersonal([]byte(msg))
	require.NoError(t, err)
	return msg, sig
}

func TestGenerateNonce(t *testing.T) {
	hex32 := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		n := GenerateNonce()
		assert.Regexp(t, hex32, n)
		assert.False(t, seen[n])
		seen[n] = true
	}
}

func TestExtractNonce(t *testing.T) {
	n := GenerateNonce()
	msg := SIWEMessage{Domain: "x.app", Nonce: n, ChainID: 8453, IssuedAt: time.Now()}.String()
	got, ok := ExtractNonce(msg)
	require.True(t, ok)
	assert.Equal(t, n, got)

	got, ok = ExtractNonce("Signed AT " + n)
	require.True(t, ok)
	assert.Equal(t, n, got)

	_, ok = ExtractNonce("Nonce: tooshort")
	assert.False(t, ok)
}

func TestSignInWithWalletConnect(t *testing.T) {
	signer := newSigner(t)
	nonces := memory.NewNonceStore()
	f := newFlow(NewLocalWallet(signer, DefaultConfig(), true), nonces)

	nonce := GenerateNonce()
	res, err := f.SignIn(context.Background(), "s1", nonce)
	require.NoError(t, err)
	assert.Equal(t, signer.Address().Hex(), res.Address)
	assert.Contains(t, res.Message, "Nonce: "+nonce)

	used, err := nonces.IsUsed(context.Background(), "s1", nonce)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestSignInFallsBackToPersonalSign(t *testing.T) {
	signer := newSigner(t)
	f := newFlow(NewLocalWallet(signer, DefaultConfig(), false), memory.NewNonceStore())

	res, err := f.SignIn(context.Background(), "s1", GenerateNonce())
	require.NoError(t, err)
	assert.Equal(t, signer.Address().Hex(), res.Address)
	assert.Contains(t, res.Message, "Sign in to Whale Bounty on Base.")
	assert.Contains(t, res.Message, "Chain ID: 8453")
}

func TestNonceReusedAcrossFlowsInSameSession(t *testing.T) {
	signer := newSigner(t)
	nonces := memory.NewNonceStore()
	nonce := GenerateNonce()

	_, err := newFlow(NewLocalWallet(signer, DefaultConfig(), true), nonces).SignIn(context.Background(), "s1", nonce)
	require.NoError(t, err)

	// A second flow over the same store stands in for a reload.
	p := &scriptedProvider{}
	_, err = newFlow(p, nonces).SignIn(context.Background(), "s1", nonce)
	assert.Equal(t, CodeNonceReused, CodeOf(err))
	assert.Empty(t, p.calls, "wallet must not be contacted for a reused nonce")

	_, err = newFlow(NewLocalWallet(signer, DefaultConfig(), true), nonces).SignIn(context.Background(), "s2", nonce)
	assert.NoError(t, err)
}

func TestMismatchedNonceIsNotConsumed(t *testing.T) {
	signer := newSigner(t)
	nonces := memory.NewNonceStore()
	msg, sig := signedMessage(t, signer, GenerateNonce())
	p := &scriptedProvider{results: map[string]any{
		"wallet_connect": map[string]any{"accounts": []any{map[string]any{
			"address":      signer.Address().Hex(),
			"capabilities": map[string]any{"signInWithEthereum": map[string]string{"message": msg, "signature": sig}},
		}}},
	}}

	nonce := GenerateNonce()
	_, err := newFlow(p, nonces).SignIn(context.Background(), "s1", nonce)
	assert.Equal(t, CodeInvalidNonce, CodeOf(err))

	used, err := nonces.IsUsed(context.Background(), "s1", nonce)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestAcceptRejectsForgedSignatureAndBurnsNonce(t *testing.T) {
	owner := newSigner(t)
	forger := newSigner(t)
	ctx := context.Background()
	f := newFlow(nil, memory.NewNonceStore())

	nonce, err := f.Issue(ctx, "s1")
	require.NoError(t, err)
	msg, _ := signedMessage(t, owner, nonce)
	forged, err := forger.SignPersonal([]byte(msg))
	require.NoError(t, err)

	_, err = f.Accept(ctx, "s1", nonce, owner.Address().Hex(), msg, forged)
	assert.Equal(t, CodeInvalidSignature, CodeOf(err))

	_, sig := signedMessage(t, owner, nonce)
	_, err = f.Accept(ctx, "s1", nonce, owner.Address().Hex(), msg, sig)
	assert.Equal(t, CodeNonceReused, CodeOf(err))
}

func TestAcceptValidSignature(t *testing.T) {
	owner := newSigner(t)
	ctx := context.Background()
	f := newFlow(nil, memory.NewNonceStore())
	nonce, err := f.Issue(ctx, "s1")
	require.NoError(t, err)
	msg, sig := signedMessage(t, owner, nonce)

	res, err := f.Accept(ctx, "s1", nonce, owner.Address().Hex(), msg, sig)
	require.NoError(t, err)
	assert.Equal(t, owner.Address().Hex(), res.Address)

	other, err := f.Issue(ctx, "s2")
	require.NoError(t, err)
	_, err = f.Accept(ctx, "s2", other, owner.Address().Hex(), "", "")
	assert.Equal(t, CodeNoSignature, CodeOf(err))
}

func TestAcceptRequiresNonceIssuedToSession(t *testing.T) {
	owner := newSigner(t)
	ctx := context.Background()
	nonces := memory.NewNonceStore()
	f := newFlow(nil, nonces)

	nonce, err := f.Issue(ctx, "victim")
	require.NoError(t, err)
	msg, sig := signedMessage(t, owner, nonce)

	// Replayed into a session the nonce was never issued to.
	_, err = f.Accept(ctx, "attacker", nonce, owner.Address().Hex(), msg, sig)
	assert.Equal(t, CodeInvalidNonce, CodeOf(err))

	// Never issued anywhere.
	stray := GenerateNonce()
	msg2, sig2 := signedMessage(t, owner, stray)
	_, err = f.Accept(ctx, "victim", stray, owner.Address().Hex(), msg2, sig2)
	assert.Equal(t, CodeInvalidNonce, CodeOf(err))

	// The rejected attempts consumed nothing.
	used, err := nonces.IsUsed(ctx, "attacker", nonce)
	require.NoError(t, err)
	assert.False(t, used)

	_, err = f.Accept(ctx, "victim", nonce, owner.Address().Hex(), msg, sig)
	require.NoError(t, err)

	// And once consumed it cannot be reused by its own session either.
	_, err = f.Accept(ctx, "victim", nonce, owner.Address().Hex(), msg, sig)
	assert.Equal(t, CodeNonceReused, CodeOf(err))
}

func TestAcceptChecksMessageFields(t *testing.T) {
	owner := newSigner(t)
	someone := newSigner(t)
	cfg := DefaultConfig()

	cases := []struct {
		name    string
		edit    func(m *SIWEMessage)
		address string
	}{
		{name: "foreign domain", edit: func(m *SIWEMessage) { m.Domain = "evil.example" }},
		{name: "other chain", edit: func(m *SIWEMessage) { m.ChainID = 1 }},
		{name: "other address", edit: func(m *SIWEMessage) {}, address: someone.Address().Hex()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			nonces := memory.NewNonceStore()
			f := newFlow(nil, nonces)
			nonce, err := f.Issue(ctx, "s1")
			require.NoError(t, err)

			m := SIWEMessage{
				Domain: cfg.Domain, Address: owner.Address(), Statement: cfg.Statement,
				URI: cfg.URI, ChainID: cfg.ChainID, Nonce: nonce, IssuedAt: time.Now(),
			}
			tc.edit(&m)
			msg := m.String()
			sig, err := owner.SignPersonal([]byte(msg))
			require.NoError(t, err)

			address := tc.address
			if address == "" {
				address = owner.Address().Hex()
			}
			_, err = f.Accept(ctx, "s1", nonce, address, msg, sig)
			assert.Equal(t, CodeInvalidMessage, CodeOf(err))

			used, err := nonces.IsUsed(ctx, "s1", nonce)
			require.NoError(t, err)
			assert.False(t, used)
		})
	}
}

func TestParseSIWEMessage(t *testing.T) {
	cfg := DefaultConfig()
	addr := newSigner(t).Address()
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	nonce := GenerateNonce()
	in := SIWEMessage{
		Domain: cfg.Domain, Address: addr, Statement: cfg.Statement,
		URI: cfg.URI, ChainID: cfg.ChainID, Nonce: nonce, IssuedAt: issued,
	}

	got, err := ParseSIWEMessage(in.String())
	require.NoError(t, err)
	assert.Equal(t, cfg.Domain, got.Domain)
	assert.Equal(t, addr, got.Address)
	assert.Equal(t, cfg.URI, got.URI)
	assert.Equal(t, cfg.ChainID, got.ChainID)
	assert.Equal(t, nonce, got.Nonce)
	assert.True(t, issued.Equal(got.IssuedAt))

	for _, bad := range []string{
		"",
		"Nonce: " + nonce,
		cfg.Domain + " wants you to sign in with your Ethereum account:\nnot-an-address\n\nChain ID: 8453",
		cfg.Domain + " wants you to sign in with your Ethereum account:\n" + addr.Hex() + "\n\nNonce: " + nonce,
	} {
		_, err := ParseSIWEMessage(bad)
		assert.Error(t, err, bad)
	}
}

func TestSignInWalletFailures(t *testing.T) {
	unsupported := errors.New("method_not_supported")
	cases := []struct {
		name string
		p    *scriptedProvider
		want Code
	}{
		{
			name: "no accounts",
			p: &scriptedProvider{
				errs:    map[string]error{"wallet_connect": unsupported},
				results: map[string]any{"eth_requestAccounts": []string{}},
			},
			want: CodeNoAccounts,
		},
		{
			name: "personal_sign unsupported",
			p: &scriptedProvider{
				errs:    map[string]error{"wallet_connect": unsupported, "personal_sign": ErrMethodNotSupported},
				results: map[string]any{"eth_requestAccounts": []string{"0x000000000000000000000000000000000000dEaD"}},
			},
			want: CodeMethodNotSupported,
		},
		{
			name: "connect without signature",
			p: &scriptedProvider{results: map[string]any{
				"wallet_connect": map[string]any{"accounts": []any{map[string]any{"address": "0x000000000000000000000000000000000000dEaD"}}},
			}},
			want: CodeNoSignature,
		},
		{
			name: "chain switch rejected",
			p:    &scriptedProvider{errs: map[string]error{"wallet_switchEthereumChain": errors.New("user rejected")}},
			want: CodeProviderError,
		},
		{
			name: "connect fails",
			p:    &scriptedProvider{errs: map[string]error{"wallet_connect": errors.New("boom")}},
			want: CodeProviderError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newFlow(tc.p, memory.NewNonceStore()).SignIn(context.Background(), "s", GenerateNonce())
			require.Error(t, err)
			assert.Equal(t, tc.want, CodeOf(err), err.Error())
		})
	}
}

func TestLocalWalletRejectsOtherChains(t *testing.T) {
	w := NewLocalWallet(newSigner(t), DefaultConfig(), true)
	err := w.Request(context.Background(), "wallet_switchEthereumChain", []any{map[string]string{"chainId": "0x1"}}, nil)
	assert.Error(t, err)
	err = w.Request(context.Background(), "wallet_switchEthereumChain", []any{map[string]string{"chainId": "0x2105"}}, nil)
	assert.NoError(t, err)

	var accts []string
	require.NoError(t, w.Request(context.Background(), "eth_accounts", nil, &accts))
	assert.Equal(t, []string{w.Address().Hex()}, accts)

	err = w.Request(context.Background(), "eth_sendTransaction", nil, nil)
	assert.True(t, isUnsupported(err))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("x")))
	wrapped := fmt.Errorf("service: %w", newError(CodeInvalidNonce, "bad"))
	assert.Equal(t, CodeInvalidNonce, CodeOf(wrapped))
}
