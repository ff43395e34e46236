package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/umarz317/uniswap-v2-dapp/internal/balance"
	"github.com/umarz317/uniswap-v2-dapp/internal/config"
	"github.com/umarz317/uniswap-v2-dapp/internal/feed"
	"github.com/umarz317/uniswap-v2-dapp/internal/metrics"
	"github.com/umarz317/uniswap-v2-dapp/internal/multicall"
	"github.com/umarz317/uniswap-v2-dapp/internal/pair"
	"github.com/umarz317/uniswap-v2-dapp/internal/quote"
	"github.com/umarz317/uniswap-v2-dapp/internal/server"
	"github.com/umarz317/uniswap-v2-dapp/internal/swap"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.InfoLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("signal received, shutting down")
		cancel()
	}()

	metrics.Serve(ctx, cfg.Server.MetricsAddr, nil, logger)

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		logger.Fatal("dial rpc", zap.Error(err))
	}
	defer ec.Close()

	native, err := tokens.NativeToken(cfg.Chain.ID, cfg.DEX.WETH)
	if err != nil {
		logger.Fatal("native token", zap.Error(err))
	}
	stable, err := tokens.FromConfig(cfg.Chain.ID, cfg.Stable.Address, cfg.Stable.Decimals, cfg.Stable.Symbol, cfg.Stable.Name)
	if err != nil {
		logger.Fatal("stable token", zap.Error(err))
	}
	reg := tokens.NewRegistry(native, stable)

	fetcher, err := pair.NewFetcher(ec, common.HexToAddress(cfg.DEX.Factory), common.HexToHash(cfg.DEX.InitCodeHash))
	if err != nil {
		logger.Fatal("reserve fetcher", zap.Error(err))
	}
	engine := quote.NewEngine(reg, fetcher, logger)

	var mc *multicall.Client
	if common.IsHexAddress(cfg.DEX.Multicall) {
		mc, err = multicall.New(ec, common.HexToAddress(cfg.DEX.Multicall))
		if err != nil {
			logger.Fatal("multicall", zap.Error(err))
		}
	}
	reader, err := balance.NewReader(ec, reg, mc)
	if err != nil {
		logger.Fatal("balance reader", zap.Error(err))
	}

	submitter, err := swap.New(ec, common.HexToAddress(cfg.DEX.Router), cfg.Chain.WalletPK, cfg.Chain.GasLimitSwap, cfg.ReceiptPoll(), logger)
	if err != nil {
		logger.Fatal("swap submitter", zap.Error(err))
	}

	pub := feed.NewPublisher(cfg)
	defer pub.Close()

	logger.Info("swapd starting",
		zap.String("pair", native.Symbol+"/"+stable.Symbol),
		zap.Int64("chain_id", cfg.Chain.ID),
		zap.Int("slippage_bps", cfg.SlippageBps()),
		zap.Bool("feed", pub != nil),
	)

	srv := server.New(cfg, reg, engine, reader, submitter, pub, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("api server", zap.Error(err))
	}
	logger.Info("swapd stopped")
}
