package quote

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/pair"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

type fakeReserves struct {
	rIn, rOut *big.Int
	err       error
	calls     int
}

func (f *fakeReserves) Reserves(_ context.Context, _, _ tokens.Token) (*big.Int, *big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.rIn, f.rOut, nil
}

func testRegistry(t *testing.T) *tokens.Registry {
	t.Helper()
	native, err := tokens.NativeToken(1, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.NoError(t, err)
	stable, err := tokens.FromConfig(1, "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18, "DAI", "Dai Stablecoin")
	require.NoError(t, err)
	return tokens.NewRegistry(native, stable)
}

func TestQuoteHappyPath(t *testing.T) {
	src := &fakeReserves{
		rIn:  bigFromString(t, "10000000000000000000"),
		rOut: bigFromString(t, "20000000000000000000000"),
	}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	q := eng.Quote(context.Background(), "1", true)
	assert.Equal(t, "ETH", q.In.Symbol)
	assert.Equal(t, "DAI", q.Out.Symbol)
	assert.Equal(t, bigFromString(t, "1000000000000000000"), q.AmountIn)
	assert.Equal(t, bigFromString(t, "1813221787760298263162"), q.AmountOut)
	assert.Equal(t, "1813.22", q.Price)
	assert.Equal(t, 1, src.calls)
}

func TestQuoteMalformedInputSkipsFetch(t *testing.T) {
	src := &fakeReserves{rIn: big.NewInt(1), rOut: big.NewInt(1)}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	for _, bad := range []string{"abc", "", "  ", "-1", "1.2.3"} {
		q := eng.Quote(context.Background(), bad, true)
		assert.Zero(t, q.AmountOut.Sign(), "input %q", bad)
		assert.Equal(t, "0", q.Price, "input %q", bad)
	}
	assert.Zero(t, src.calls, "reserve fetch must not be issued for malformed input")
}

func TestQuoteZeroAmountSkipsFetch(t *testing.T) {
	src := &fakeReserves{rIn: big.NewInt(1), rOut: big.NewInt(1)}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	q := eng.Quote(context.Background(), "0", true)
	assert.Zero(t, q.AmountOut.Sign())
	assert.Zero(t, src.calls)
}

func TestQuotePoolNotFoundIsZeroQuote(t *testing.T) {
	src := &fakeReserves{err: fmt.Errorf("%w: no contract", pair.ErrPoolNotFound)}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	q := eng.Quote(context.Background(), "1", true)
	assert.Zero(t, q.AmountOut.Sign())
	assert.Equal(t, "0", q.Price)
	assert.Equal(t, 1, src.calls)
}

func TestQuoteReserveErrorIsZeroQuote(t *testing.T) {
	src := &fakeReserves{err: fmt.Errorf("rpc timeout")}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	q := eng.Quote(context.Background(), "1", false)
	assert.Zero(t, q.AmountOut.Sign())
	assert.Equal(t, "DAI", q.In.Symbol)
}

func TestQuoteZeroReservesIsZeroQuote(t *testing.T) {
	src := &fakeReserves{rIn: big.NewInt(0), rOut: big.NewInt(0)}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	q := eng.Quote(context.Background(), "1", true)
	assert.Zero(t, q.AmountOut.Sign())
}

func TestBuildInstruction(t *testing.T) {
	src := &fakeReserves{
		rIn:  bigFromString(t, "10000000000000000000"),
		rOut: bigFromString(t, "20000000000000000000000"),
	}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	q := eng.Quote(context.Background(), "1", true)
	before := time.Now().Unix()
	ins := eng.BuildInstruction(q, 50, 20, recipient)
	after := time.Now().Unix()

	require.Len(t, ins.Path, 2)
	// Native leg is represented by its wrapped address in the path.
	assert.Equal(t, common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), ins.Path[0])
	assert.Equal(t, common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"), ins.Path[1])
	assert.True(t, ins.FromNative)
	assert.Equal(t, q.AmountIn, ins.AmountIn)
	assert.Equal(t, recipient, ins.To)

	assert.True(t, ins.MinOut.Cmp(q.AmountOut) < 0)
	expectedMin := MinOut(q.AmountOut, 50)
	assert.Equal(t, expectedMin, ins.MinOut)

	assert.GreaterOrEqual(t, ins.Deadline.Int64(), before+20*60)
	assert.LessOrEqual(t, ins.Deadline.Int64(), after+20*60)
}

func TestBuildInstructionZeroSlippageKeepsQuotedOutput(t *testing.T) {
	src := &fakeReserves{
		rIn:  bigFromString(t, "10000000000000000000"),
		rOut: bigFromString(t, "20000000000000000000000"),
	}
	eng := NewEngine(testRegistry(t), src, zap.NewNop())

	q := eng.Quote(context.Background(), "1", true)
	ins := eng.BuildInstruction(q, 0, 20, common.Address{})
	assert.Equal(t, q.AmountOut, ins.MinOut)
}

func TestExecutionPriceSigFigs(t *testing.T) {
	tok18 := tokens.Token{Decimals: 18}
	tests := []struct {
		in, out string
		want    string
	}{
		{"1000000000000000000", "1813221787760298263162", "1813.22"},
		{"1000000000000000000", "1000000000000000000", "1"},
		{"1000000000000000000", "1234567891234567891", "1.23457"},
		{"1000000000000000000000", "1234567891234567891", "0.00123457"},
	}
	for _, tc := range tests {
		got := executionPrice(bigFromString(t, tc.in), bigFromString(t, tc.out), tok18, tok18)
		assert.Equal(t, tc.want, got, "in=%s out=%s", tc.in, tc.out)
	}
}
