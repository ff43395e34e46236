package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/config"
	"github.com/umarz317/uniswap-v2-dapp/internal/pair"
	"github.com/umarz317/uniswap-v2-dapp/internal/quote"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

// One-shot quoting tool: prints the indicative output for an amount and
// the instruction the daemon would submit, then exits.
func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	amount := flag.String("amount", "1", "input amount, decimal text")
	fromNative := flag.Bool("from-native", true, "swap native asset for the stable token")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial rpc:", err)
		os.Exit(1)
	}
	defer ec.Close()

	native, err := tokens.NativeToken(cfg.Chain.ID, cfg.DEX.WETH)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	stable, err := tokens.FromConfig(cfg.Chain.ID, cfg.Stable.Address, cfg.Stable.Decimals, cfg.Stable.Symbol, cfg.Stable.Name)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	reg := tokens.NewRegistry(native, stable)

	fetcher, err := pair.NewFetcher(ec, common.HexToAddress(cfg.DEX.Factory), common.HexToHash(cfg.DEX.InitCodeHash))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	engine := quote.NewEngine(reg, fetcher, zap.NewNop())

	q := engine.Quote(ctx, *amount, *fromNative)
	fmt.Printf("%s %s -> %s %s (price %s %s/%s)\n",
		tokens.FormatAmount(q.AmountIn, q.In), q.In.Symbol,
		tokens.FormatAmount(q.AmountOut, q.Out), q.Out.Symbol,
		q.Price, q.Out.Symbol, q.In.Symbol,
	)
	if q.AmountOut.Sign() <= 0 {
		fmt.Println("zero quote: bad amount or no liquidity")
		return
	}

	ins := engine.BuildInstruction(q, cfg.SlippageBps(), cfg.Trade.DeadlineMinutes, common.Address{})
	fmt.Printf("min out  %s %s (%d bps tolerance)\n", tokens.FormatAmount(ins.MinOut, q.Out), q.Out.Symbol, cfg.SlippageBps())
	fmt.Printf("path     %s -> %s\n", tokens.ChecksumAddress(ins.Path[0]), tokens.ChecksumAddress(ins.Path[1]))
	fmt.Printf("deadline %s\n", time.Unix(ins.Deadline.Int64(), 0).Format(time.RFC3339))
}
