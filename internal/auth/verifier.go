package auth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Verifier checks that signature is address's personal_sign over message.
type Verifier interface {
	VerifyMessage(ctx context.Context, address, message, signature string) (bool, error)
}

// ChainReader is the slice of ethclient.Client the verifier needs.
type ChainReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const erc1271ABI = `[{"type":"function","name":"isValidSignature","stateMutability":"view",
"inputs":[{"name":"hash","type":"bytes32"},{"name":"signature","type":"bytes"}],
"outputs":[{"name":"magicValue","type":"bytes4"}]}]`

var (
	erc1271Magic = [4]byte{0x16, 0x26, 0xba, 0x7e}

	// erc6492Suffix terminates signatures from not-yet-deployed smart wallets.
	erc6492Suffix = common.FromHex("0x6492649264926492649264926492649264926492649264926492649264926492")

	erc1271 = mustABI(erc1271ABI)
	erc6492 = mustArgs("address", "bytes", "bytes")
)

// ChainVerifier validates EOA signatures locally and smart wallet signatures
// through EIP-1271 against chain. A nil chain limits it to EOAs.
type ChainVerifier struct {
	chain  ChainReader
	logger *slog.Logger
}

// NewChainVerifier creates a ChainVerifier.
func NewChainVerifier(chain ChainReader, logger *slog.Logger) *ChainVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainVerifier{chain: chain, logger: logger.With(slog.String("component", "chain_verifier"))}
}

func (v *ChainVerifier) VerifyMessage(ctx context.Context, address, message, signature string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, nil
	}
	addr := common.HexToAddress(address)
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, nil
	}
	hash := accounts.TextHash([]byte(message))

	if bytes.HasSuffix(sig, erc6492Suffix) {
		inner, ok := unwrap6492(sig)
		if !ok {
			return false, nil
		}
		sig = inner
	}

	if len(sig) == 65 && recoversTo(hash, sig, addr) {
		return true, nil
	}
	if v.chain == nil {
		return false, nil
	}

	code, err := v.chain.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("auth: code at %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		// Counterfactual wallets need the factory deployment simulated first.
		v.logger.DebugContext(ctx, "no contract code for signer", slog.String("address", addr.Hex()))
		return false, nil
	}
	return v.isValidSignature(ctx, addr, hash, sig)
}

func (v *ChainVerifier) isValidSignature(ctx context.Context, wallet common.Address, hash, sig []byte) (bool, error) {
	data, err := erc1271.Pack("isValidSignature", [32]byte(hash), sig)
	if err != nil {
		return false, fmt.Errorf("auth: pack isValidSignature: %w", err)
	}
	res, err := v.chain.CallContract(ctx, ethereum.CallMsg{To: &wallet, Data: data}, nil)
	if err != nil {
		// Reverts are how many wallets say "no".
		v.logger.DebugContext(ctx, "isValidSignature call failed",
			slog.String("address", wallet.Hex()),
			slog.String("error", err.Error()),
		)
		return false, nil
	}
	out, err := erc1271.Unpack("isValidSignature", res)
	if err != nil || len(out) != 1 {
		return false, nil
	}
	magic, ok := out[0].([4]byte)
	return ok && magic == erc1271Magic, nil
}

func recoversTo(hash, sig []byte, want common.Address) bool {
	s := make([]byte, 65)
	copy(s, sig)
	if s[64] >= 27 {
		s[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(hash, s)
	if err != nil {
		return false
	}
	return ethcrypto.PubkeyToAddress(*pub) == want
}

// unwrap6492 returns the inner signature of abi.encode(factory, calldata, sig)
// followed by the magic suffix.
func unwrap6492(sig []byte) ([]byte, bool) {
	vals, err := erc6492.Unpack(sig[:len(sig)-len(erc6492Suffix)])
	if err != nil || len(vals) != 3 {
		return nil, false
	}
	inner, ok := vals[2].([]byte)
	return inner, ok
}

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustArgs(types ...string) abi.Arguments {
	args := make(abi.Arguments, 0, len(types))
	for _, t := range types {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		args = append(args, abi.Argument{Type: typ})
	}
	return args
}
