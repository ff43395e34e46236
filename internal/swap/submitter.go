package swap

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/metrics"
	"github.com/umarz317/uniswap-v2-dapp/internal/quote"
)

var (
	// ErrApprovalFailed means the allowance transaction reverted or could
	// not be broadcast; the swap is never attempted after it.
	ErrApprovalFailed = errors.New("approval failed")

	// ErrSwapExecution means the router call reverted or could not be
	// broadcast. No automatic retry: re-submitting is a user action.
	ErrSwapExecution = errors.New("swap execution failed")
)

const routerABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForETH","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

const erc20ABI = `[
 {"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}
]`

// Backend is the slice of ethclient.Client the submitter needs. Signing,
// nonce choice and gas pricing happen here; everything downstream of
// SendTransaction is the node's problem.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// Result reports the transactions of one submission attempt. ApprovalTx is
// empty when the input token is the native asset.
type Result struct {
	ApprovalTx string
	SwapTx     string
}

type Submitter struct {
	ec       Backend
	abi      abi.ABI
	erc20    abi.ABI
	router   common.Address
	gasLimit uint64
	poll     time.Duration
	priv     *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	log      *zap.Logger
}

// New builds a submitter. An empty pkHex leaves it quote-only: Submit then
// fails fast without touching the network.
func New(ec Backend, router common.Address, pkHex string, gasLimit uint64, poll time.Duration, log *zap.Logger) (*Submitter, error) {
	rABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	eABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, err
	}

	var (
		key     *ecdsa.PrivateKey
		from    common.Address
		chainID *big.Int
	)
	if strings.TrimSpace(pkHex) != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(pkHex, "0x"))
		if err != nil {
			return nil, err
		}
		from = crypto.PubkeyToAddress(key.PublicKey)
		chainID, err = ec.ChainID(context.Background())
		if err != nil {
			return nil, err
		}
	}

	if gasLimit == 0 {
		gasLimit = 300_000
	}
	if poll <= 0 {
		poll = 2 * time.Second
	}

	return &Submitter{
		ec:       ec,
		abi:      rABI,
		erc20:    eABI,
		router:   router,
		gasLimit: gasLimit,
		poll:     poll,
		priv:     key,
		from:     from,
		chainID:  chainID,
		log:      log,
	}, nil
}

func (s *Submitter) From() common.Address { return s.from }

// Submit executes one swap instruction: for an ERC-20 input it first grants
// the router an allowance for exactly the input amount and waits for that
// receipt before the router call goes out. The router entry point follows
// the instruction's direction flag.
func (s *Submitter) Submit(ctx context.Context, ins quote.Instruction) (Result, error) {
	var res Result
	if s.priv == nil {
		return res, errors.New("no wallet key configured")
	}
	if len(ins.Path) != 2 {
		return res, fmt.Errorf("bad path length %d", len(ins.Path))
	}

	if !ins.FromNative {
		data, _ := s.erc20.Pack("approve", s.router, ins.AmountIn)
		hash, err := s.send(ctx, ins.Path[0], data, nil)
		if err != nil {
			metrics.SwapsFailed.Inc()
			return res, fmt.Errorf("%w: %v", ErrApprovalFailed, err)
		}
		res.ApprovalTx = hash.Hex()
		rcpt, err := s.waitReceipt(ctx, hash)
		if err != nil {
			metrics.SwapsFailed.Inc()
			return res, fmt.Errorf("%w: %v", ErrApprovalFailed, err)
		}
		if rcpt.Status != gethtypes.ReceiptStatusSuccessful {
			metrics.SwapsFailed.Inc()
			return res, fmt.Errorf("%w: approval reverted in %s", ErrApprovalFailed, hash.Hex())
		}
		s.log.Info("approval confirmed", zap.String("tx", hash.Hex()))
	}

	var (
		data  []byte
		value *big.Int
	)
	if ins.FromNative {
		data, _ = s.abi.Pack("swapExactETHForTokens", ins.MinOut, ins.Path, ins.To, ins.Deadline)
		value = ins.AmountIn
	} else {
		data, _ = s.abi.Pack("swapExactTokensForETH", ins.AmountIn, ins.MinOut, ins.Path, ins.To, ins.Deadline)
	}

	hash, err := s.send(ctx, s.router, data, value)
	if err != nil {
		metrics.SwapsFailed.Inc()
		return res, fmt.Errorf("%w: %v", ErrSwapExecution, err)
	}
	res.SwapTx = hash.Hex()
	metrics.SwapsSubmitted.Inc()

	rcpt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		metrics.SwapsFailed.Inc()
		return res, fmt.Errorf("%w: %v", ErrSwapExecution, err)
	}
	if rcpt.Status != gethtypes.ReceiptStatusSuccessful {
		metrics.SwapsFailed.Inc()
		return res, fmt.Errorf("%w: reverted in %s", ErrSwapExecution, hash.Hex())
	}
	s.log.Info("swap confirmed",
		zap.String("tx", hash.Hex()),
		zap.String("amount_in", ins.AmountIn.String()),
		zap.String("min_out", ins.MinOut.String()),
	)
	return res, nil
}

func (s *Submitter) send(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	if value == nil {
		value = new(big.Int)
	}

	tip, err := s.ec.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = big.NewInt(2_000_000_000)
	}
	var baseFee *big.Int
	if h, _ := s.ec.HeaderByNumber(ctx, nil); h != nil && h.BaseFee != nil {
		baseFee = new(big.Int).Set(h.BaseFee)
	} else if sp, _ := s.ec.SuggestGasPrice(ctx); sp != nil {
		baseFee = sp
	} else {
		baseFee = big.NewInt(5_000_000_000)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)

	nonce, err := s.ec.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, err
	}

	gas, err := s.ec.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Data: data, Value: value})
	if err != nil || gas == 0 {
		gas = s.gasLimit
	}

	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
		Value:     value,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(s.chainID), s.priv)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.ec.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (s *Submitter) waitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		rcpt, err := s.ec.TransactionReceipt(ctx, hash)
		if err == nil && rcpt != nil {
			return rcpt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
