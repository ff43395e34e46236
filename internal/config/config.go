package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ChainCfg struct {
	ID           int64  `yaml:"id"`
	RPCHTTP      string `yaml:"rpc_http"`
	WalletPK     string `yaml:"wallet_pk"`
	GasLimitSwap uint64 `yaml:"gas_limit_swap"`
}

type DEXCfg struct {
	Factory      string `yaml:"factory"`
	Router       string `yaml:"router"`
	WETH         string `yaml:"weth"`
	InitCodeHash string `yaml:"init_code_hash"`
	Multicall    string `yaml:"multicall"`
}

type TokenCfg struct {
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
}

// SlippageBps is a pointer so an explicit 0 (no tolerance) survives
// defaulting; only an absent key gets the default.
type TradeCfg struct {
	SlippageBps     *int `yaml:"slippage_bps"`
	DeadlineMinutes int  `yaml:"deadline_minutes"`
}

type ServerCfg struct {
	ListenAddr    string `yaml:"listen_addr"`
	MetricsAddr   string `yaml:"metrics_addr"`
	RateLimitRPS  int    `yaml:"rate_limit_rps"`
	ReceiptPollMs int    `yaml:"receipt_poll_ms"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	DB       int    `yaml:"db"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Stream   string `yaml:"stream"`
}

type Config struct {
	Chain  ChainCfg  `yaml:"chain"`
	DEX    DEXCfg    `yaml:"dex"`
	Stable TokenCfg  `yaml:"stable"`
	Trade  TradeCfg  `yaml:"trade"`
	Server ServerCfg `yaml:"server"`
	Redis  RedisCfg  `yaml:"redis"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) ApplyDefaults() {
	if c.Chain.ID == 0 {
		c.Chain.ID = 1
	}
	if c.Chain.GasLimitSwap == 0 {
		c.Chain.GasLimitSwap = 300_000
	}
	// Uniswap V2 mainnet deployment
	if c.DEX.Factory == "" {
		c.DEX.Factory = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
	}
	if c.DEX.Router == "" {
		c.DEX.Router = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
	}
	if c.DEX.WETH == "" {
		c.DEX.WETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	}
	if c.DEX.InitCodeHash == "" {
		c.DEX.InitCodeHash = "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"
	}
	if c.DEX.Multicall == "" {
		c.DEX.Multicall = "0xeefBa1e63905eF1D7ACbA5a8513c70307C1cE441"
	}
	if c.Stable.Address == "" {
		c.Stable.Address = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
		c.Stable.Decimals = 18
		c.Stable.Symbol = "DAI"
		c.Stable.Name = "Dai Stablecoin"
	}
	if c.Trade.SlippageBps == nil {
		bps := 50
		c.Trade.SlippageBps = &bps
	}
	if c.Trade.DeadlineMinutes == 0 {
		c.Trade.DeadlineMinutes = 20
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 20
	}
	if c.Server.ReceiptPollMs == 0 {
		c.Server.ReceiptPollMs = 2000
	}
	if c.Redis.Stream == "" {
		c.Redis.Stream = "swaps:executed"
	}
}

func (c *Config) Validate() error {
	if c.Chain.RPCHTTP == "" {
		return fmt.Errorf("chain.rpc_http is required")
	}
	if bps := c.SlippageBps(); bps < 0 || bps >= 10_000 {
		return fmt.Errorf("trade.slippage_bps out of range [0, 10000): %d", bps)
	}
	if c.Trade.DeadlineMinutes <= 0 {
		return fmt.Errorf("trade.deadline_minutes must be positive: %d", c.Trade.DeadlineMinutes)
	}
	return nil
}

// SlippageBps returns the configured tolerance; call after ApplyDefaults.
func (c *Config) SlippageBps() int {
	if c.Trade.SlippageBps == nil {
		return 50
	}
	return *c.Trade.SlippageBps
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.Trade.DeadlineMinutes) * time.Minute
}

func (c *Config) ReceiptPoll() time.Duration {
	return time.Duration(c.Server.ReceiptPollMs) * time.Millisecond
}
