package balance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/umarz317/uniswap-v2-dapp/internal/multicall"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

const erc20ABI = `[
 {"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// Backend is the slice of ethclient.Client the reader needs.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Entry is one displayable holding. Display-only: balances never feed
// pricing.
type Entry struct {
	Token  tokens.Token
	Raw    *big.Int
	Amount string
}

type Reader struct {
	ec  Backend
	reg *tokens.Registry
	mc  *multicall.Client
	abi abi.ABI
}

// NewReader builds a balance reader. mc may be nil; ERC-20 reads then fall
// back to one call per token.
func NewReader(ec Backend, reg *tokens.Registry, mc *multicall.Client) (*Reader, error) {
	eABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}
	return &Reader{ec: ec, reg: reg, mc: mc, abi: eABI}, nil
}

// Balances reads current holdings of every registry token for owner.
func (r *Reader) Balances(ctx context.Context, owner common.Address) ([]Entry, error) {
	all := r.reg.All()
	out := make([]Entry, 0, len(all))

	var erc20s []tokens.Token
	for _, t := range all {
		if t.Native {
			raw, err := r.ec.BalanceAt(ctx, owner, nil)
			if err != nil {
				return nil, fmt.Errorf("native balance: %w", err)
			}
			out = append(out, Entry{Token: t, Raw: raw, Amount: tokens.FormatAmount(raw, t)})
			continue
		}
		erc20s = append(erc20s, t)
	}

	if len(erc20s) == 0 {
		return out, nil
	}

	if r.mc != nil {
		entries, err := r.batched(ctx, owner, erc20s)
		if err != nil {
			return nil, err
		}
		return append(out, entries...), nil
	}

	for _, t := range erc20s {
		raw, err := r.single(ctx, owner, t)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Token: t, Raw: raw, Amount: tokens.FormatAmount(raw, t)})
	}
	return out, nil
}

func (r *Reader) batched(ctx context.Context, owner common.Address, toks []tokens.Token) ([]Entry, error) {
	calls := make([]multicall.Call, len(toks))
	for i, t := range toks {
		data, _ := r.abi.Pack("balanceOf", owner)
		calls[i] = multicall.Call{Target: t.Address, CallData: data}
	}
	results, err := r.mc.Aggregate(ctx, calls)
	if err != nil {
		return nil, fmt.Errorf("batched balanceOf: %w", err)
	}
	if len(results) != len(toks) {
		return nil, errors.New("multicall result length mismatch")
	}

	out := make([]Entry, len(toks))
	for i, t := range toks {
		raw, err := r.decodeBalance(results[i].Data)
		if err != nil {
			return nil, fmt.Errorf("balanceOf %s: %w", t.Symbol, err)
		}
		out[i] = Entry{Token: t, Raw: raw, Amount: tokens.FormatAmount(raw, t)}
	}
	return out, nil
}

func (r *Reader) single(ctx context.Context, owner common.Address, t tokens.Token) (*big.Int, error) {
	data, _ := r.abi.Pack("balanceOf", owner)
	token := t.Address
	raw, err := r.ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", t.Symbol, err)
	}
	return r.decodeBalance(raw)
}

func (r *Reader) decodeBalance(raw []byte) (*big.Int, error) {
	outs, err := r.abi.Methods["balanceOf"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		if err == nil {
			err = errors.New("empty output")
		}
		return nil, err
	}
	b, ok := outs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balance type %T", outs[0])
	}
	return b, nil
}
