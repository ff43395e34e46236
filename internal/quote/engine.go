package quote

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/metrics"
	"github.com/umarz317/uniswap-v2-dapp/internal/pair"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

// ReserveSource is the slice of pair.Fetcher the engine needs.
type ReserveSource interface {
	Reserves(ctx context.Context, in, out tokens.Token) (reserveIn, reserveOut *big.Int, err error)
}

// TradeQuote is an indicative exact-input quote. A pair with no liquidity
// or unparseable input shows up as AmountOut == 0, never as an error.
type TradeQuote struct {
	In         tokens.Token
	Out        tokens.Token
	AmountIn   *big.Int
	AmountOut  *big.Int
	Price      string
	FromNative bool
}

// Instruction carries fully-resolved router call parameters. One-shot:
// rebuilt from a fresh quote whenever any input changes.
type Instruction struct {
	Path       []common.Address
	AmountIn   *big.Int
	MinOut     *big.Int
	To         common.Address
	Deadline   *big.Int
	FromNative bool
}

type Engine struct {
	reg *tokens.Registry
	src ReserveSource
	log *zap.Logger
}

func NewEngine(reg *tokens.Registry, src ReserveSource, log *zap.Logger) *Engine {
	return &Engine{reg: reg, src: src, log: log}
}

// Quote parses the typed amount and prices it against fresh reserves.
// Malformed input short-circuits before any network call; a missing pool
// or failed read degrades to a zero quote so the UI always has something
// to render.
func (e *Engine) Quote(ctx context.Context, amountText string, fromNative bool) TradeQuote {
	in, out := e.reg.ResolveDirection(fromNative)
	q := TradeQuote{
		In: in, Out: out,
		AmountIn:   new(big.Int),
		AmountOut:  new(big.Int),
		Price:      "0",
		FromNative: fromNative,
	}

	amountIn, err := tokens.ParseAmount(amountText, in)
	if err != nil || amountIn.Sign() <= 0 {
		return q
	}
	q.AmountIn = amountIn

	start := time.Now()
	rIn, rOut, err := e.src.Reserves(ctx, in, out)
	metrics.QuoteLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, pair.ErrPoolNotFound) {
			metrics.PoolNotFound.Inc()
		} else {
			metrics.QuoteErrors.Inc()
			e.log.Warn("reserve read failed", zap.Error(err))
		}
		return q
	}

	q.AmountOut = AmountOut(amountIn, rIn, rOut)
	q.Price = executionPrice(amountIn, q.AmountOut, in, out)
	return q
}

// BuildInstruction resolves a quote into router call parameters. The path
// always carries wrapped addresses; FromNative tells the submitter which
// router entry point takes them.
func (e *Engine) BuildInstruction(q TradeQuote, slippageBps, deadlineMinutes int, recipient common.Address) Instruction {
	deadline := time.Now().Unix() + int64(deadlineMinutes)*60
	return Instruction{
		Path:       []common.Address{q.In.PathAddress(), q.Out.PathAddress()},
		AmountIn:   new(big.Int).Set(q.AmountIn),
		MinOut:     MinOut(q.AmountOut, slippageBps),
		To:         recipient,
		Deadline:   big.NewInt(deadline),
		FromNative: q.FromNative,
	}
}

// executionPrice renders out/in (decimal-adjusted) to six significant
// figures, the display convention for indicative prices.
func executionPrice(amountIn, amountOut *big.Int, in, out tokens.Token) string {
	if amountIn.Sign() <= 0 || amountOut.Sign() <= 0 {
		return "0"
	}
	inD := decimal.NewFromBigInt(amountIn, -int32(in.Decimals))
	outD := decimal.NewFromBigInt(amountOut, -int32(out.Decimals))
	return sigFigs(outD.DivRound(inD, 24), 6)
}

func sigFigs(d decimal.Decimal, n int32) string {
	if d.IsZero() {
		return "0"
	}
	// Position of the most significant digit relative to the decimal point.
	msd := int32(d.NumDigits()) + d.Exponent()
	return d.Round(n - msd).String()
}
