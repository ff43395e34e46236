package pair

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

// ErrPoolNotFound means the derived pool has no deployed contract or the
// reserve read reverted. Callers surface it as a zero quote, not a crash.
var ErrPoolNotFound = errors.New("pool not found")

const pairABI = `[
 {"constant":true,"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"reserve0","type":"uint112"},{"internalType":"uint112","name":"reserve1","type":"uint112"},{"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// ContractCaller is the slice of ethclient.Client the fetcher needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

type Fetcher struct {
	ec       ContractCaller
	abi      abi.ABI
	factory  common.Address
	initHash common.Hash
}

func NewFetcher(ec ContractCaller, factory common.Address, initCodeHash common.Hash) (*Fetcher, error) {
	pABI, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, err
	}
	return &Fetcher{ec: ec, abi: pABI, factory: factory, initHash: initCodeHash}, nil
}

// AddressFor derives the pool address for two path addresses via the
// factory's CREATE2 rule. Tokens are sorted first; the same pool comes back
// for either argument order.
func (f *Fetcher) AddressFor(a, b common.Address) common.Address {
	t0, t1 := tokens.SortAddresses(a, b)
	salt := crypto.Keccak256(t0.Bytes(), t1.Bytes())

	buf := make([]byte, 0, 85)
	buf = append(buf, 0xff)
	buf = append(buf, f.factory.Bytes()...)
	buf = append(buf, salt...)
	buf = append(buf, f.initHash.Bytes()...)
	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}

// Reserves reads the pool's current reserves and returns them oriented to
// the (in, out) order of the arguments, raw base units. Each call is a
// fresh read: reserves go stale every block, so nothing is cached.
func (f *Fetcher) Reserves(ctx context.Context, in, out tokens.Token) (reserveIn, reserveOut *big.Int, err error) {
	inAddr, outAddr := in.PathAddress(), out.PathAddress()
	pool := f.AddressFor(inAddr, outAddr)

	code, err := f.ec.CodeAt(ctx, pool, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("code at %s: %w", pool.Hex(), err)
	}
	if len(code) == 0 {
		return nil, nil, fmt.Errorf("%w: no contract at %s", ErrPoolNotFound, pool.Hex())
	}

	data, _ := f.abi.Pack("getReserves")
	raw, err := f.ec.CallContract(ctx, ethereum.CallMsg{To: &pool, Data: data}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: getReserves reverted: %v", ErrPoolNotFound, err)
	}
	outs, err := f.abi.Methods["getReserves"].Outputs.Unpack(raw)
	if err != nil || len(outs) < 2 {
		if err == nil {
			err = errors.New("short output")
		}
		return nil, nil, fmt.Errorf("decode getReserves: %w", err)
	}
	r0, ok0 := outs[0].(*big.Int)
	r1, ok1 := outs[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, errors.New("unexpected getReserves types")
	}

	// Undo the canonical sort back to (in, out) order.
	t0, _ := tokens.SortAddresses(inAddr, outAddr)
	if t0 == inAddr {
		return r0, r1, nil
	}
	return r1, r0, nil
}
