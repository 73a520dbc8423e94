package auth

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	code   []byte
	result []byte
	err    error
	calls  int
}

func (c *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return c.code, nil
}

func (c *fakeChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	c.calls++
	return c.result, c.err
}

func magicResult(t *testing.T, magic [4]byte) []byte {
	t.Helper()
	out, err := erc1271.Methods["isValidSignature"].Outputs.Pack(magic)
	require.NoError(t, err)
	return out
}

func TestVerifyEOA(t *testing.T) {
	s := newSigner(t)
	v := NewChainVerifier(nil, nil)
	ctx := context.Background()

	sigHex, err := s.SignPersonal([]byte("gm"))
	require.NoError(t, err)

	ok, err := v.VerifyMessage(ctx, s.Address().Hex(), "gm", sigHex)
	require.NoError(t, err)
	assert.True(t, ok)

	// v in {0,1} is accepted as well.
	sig, _ := hexutil.Decode(sigHex)
	sig[64] -= 27
	ok, _ = v.VerifyMessage(ctx, s.Address().Hex(), "gm", hexutil.Encode(sig))
	assert.True(t, ok)

	ok, _ = v.VerifyMessage(ctx, s.Address().Hex(), "gn", sigHex)
	assert.False(t, ok)
	ok, _ = v.VerifyMessage(ctx, "not-an-address", "gm", sigHex)
	assert.False(t, ok)
	ok, _ = v.VerifyMessage(ctx, s.Address().Hex(), "gm", "0xzz")
	assert.False(t, ok)
}

func TestVerifyContractWallet(t *testing.T) {
	wallet := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sig := hexutil.Encode(make([]byte, 96))
	ctx := context.Background()

	chain := &fakeChain{code: []byte{0x60, 0x80}, result: magicResult(t, erc1271Magic)}
	ok, err := NewChainVerifier(chain, nil).VerifyMessage(ctx, wallet.Hex(), "gm", sig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, chain.calls)

	chain = &fakeChain{code: []byte{0x60, 0x80}, result: magicResult(t, [4]byte{0xff, 0xff, 0xff, 0xff})}
	ok, _ = NewChainVerifier(chain, nil).VerifyMessage(ctx, wallet.Hex(), "gm", sig)
	assert.False(t, ok)

	chain = &fakeChain{code: []byte{0x60, 0x80}, err: errors.New("execution reverted")}
	ok, err = NewChainVerifier(chain, nil).VerifyMessage(ctx, wallet.Hex(), "gm", sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyERC6492(t *testing.T) {
	s := newSigner(t)
	ctx := context.Background()
	inner, err := s.SignPersonal([]byte("gm"))
	require.NoError(t, err)
	innerBytes, _ := hexutil.Decode(inner)

	factory := common.HexToAddress("0x2222222222222222222222222222222222222222")
	body, err := erc6492.Pack(factory, []byte{0xde, 0xad}, innerBytes)
	require.NoError(t, err)
	wrapped := hexutil.Encode(append(body, erc6492Suffix...))

	ok, err := NewChainVerifier(nil, nil).VerifyMessage(ctx, s.Address().Hex(), "gm", wrapped)
	require.NoError(t, err)
	assert.True(t, ok)

	// A counterfactual contract wallet with no code yet is not verified.
	wallet := common.HexToAddress("0x3333333333333333333333333333333333333333")
	chain := &fakeChain{}
	ok, err = NewChainVerifier(chain, nil).VerifyMessage(ctx, wallet.Hex(), "gm", wrapped)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, chain.calls)
}
