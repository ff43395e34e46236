package tokens

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrParse marks user-supplied amount text that cannot be turned into a
// raw base-unit integer. Callers recover by treating the amount as zero.
var ErrParse = errors.New("malformed amount")

// Token is the immutable identity of a tradeable asset. The native asset
// uses the zero address and carries its wrapped representative, which stands
// in for it wherever an ERC-20 address is required (sorting, pair
// derivation, swap paths).
type Token struct {
	ChainID  int64
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
	Native   bool
	Wrapped  common.Address
}

// PathAddress returns the address the token contributes to a swap path:
// the wrapped representative for the native asset, the contract address
// otherwise.
func (t Token) PathAddress() common.Address {
	if t.Native {
		return t.Wrapped
	}
	return t.Address
}

// Registry holds the two assets the app trades between.
type Registry struct {
	native Token
	stable Token
}

func NewRegistry(native, stable Token) *Registry {
	return &Registry{native: native, stable: stable}
}

func (r *Registry) Native() Token { return r.native }
func (r *Registry) Stable() Token { return r.stable }

// ResolveDirection maps the UI direction flag onto an (input, output) pair.
// Pure and total; toggling the flag twice returns the original pair.
func (r *Registry) ResolveDirection(fromNative bool) (in, out Token) {
	if fromNative {
		return r.native, r.stable
	}
	return r.stable, r.native
}

func (r *Registry) All() []Token {
	return []Token{r.native, r.stable}
}

// SortAddresses orders two path addresses the way the pool factory does:
// ascending byte comparison. Reserve orientation and pair derivation both
// depend on this order, so callers must not skip it.
func SortAddresses(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) < 0 {
		return a, b
	}
	return b, a
}

// FromConfig builds a Token from its config fields.
func FromConfig(chainID int64, addr string, decimals uint8, symbol, name string) (Token, error) {
	if !common.IsHexAddress(addr) {
		return Token{}, fmt.Errorf("bad token address %q", addr)
	}
	return Token{
		ChainID:  chainID,
		Address:  common.HexToAddress(addr),
		Decimals: decimals,
		Symbol:   symbol,
		Name:     name,
	}, nil
}

// NativeToken builds the native asset with its wrapped representative.
func NativeToken(chainID int64, wrapped string) (Token, error) {
	if !common.IsHexAddress(wrapped) {
		return Token{}, fmt.Errorf("bad wrapped address %q", wrapped)
	}
	return Token{
		ChainID:  chainID,
		Decimals: 18,
		Symbol:   "ETH",
		Name:     "Ether",
		Native:   true,
		Wrapped:  common.HexToAddress(wrapped),
	}, nil
}
