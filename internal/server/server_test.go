package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/balance"
	"github.com/umarz317/uniswap-v2-dapp/internal/config"
	"github.com/umarz317/uniswap-v2-dapp/internal/quote"
	"github.com/umarz317/uniswap-v2-dapp/internal/swap"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

const (
	wethAddr = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	daiAddr  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

type fakeReserves struct {
	rIn, rOut *big.Int
}

func (f *fakeReserves) Reserves(context.Context, tokens.Token, tokens.Token) (*big.Int, *big.Int, error) {
	return f.rIn, f.rOut, nil
}

type fakeBalances struct {
	entries []balance.Entry
	err     error
}

func (f *fakeBalances) Balances(context.Context, common.Address) ([]balance.Entry, error) {
	return f.entries, f.err
}

type fakeSubmitter struct {
	res  swap.Result
	err  error
	got  *quote.Instruction
	from common.Address
}

func (f *fakeSubmitter) Submit(_ context.Context, ins quote.Instruction) (swap.Result, error) {
	f.got = &ins
	return f.res, f.err
}

func (f *fakeSubmitter) From() common.Address { return f.from }

func testServer(t *testing.T, sub SwapSubmitter, bal BalanceSource) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Chain.RPCHTTP = "http://unused"
	cfg.ApplyDefaults()

	native, err := tokens.NativeToken(1, wethAddr)
	require.NoError(t, err)
	stable, err := tokens.FromConfig(1, daiAddr, 18, "DAI", "Dai Stablecoin")
	require.NoError(t, err)
	reg := tokens.NewRegistry(native, stable)

	src := &fakeReserves{
		rIn:  mustBig(t, "10000000000000000000"),
		rOut: mustBig(t, "20000000000000000000000"),
	}
	eng := quote.NewEngine(reg, src, zap.NewNop())

	return New(cfg, reg, eng, bal, sub, nil, zap.NewNop())
}

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func doJSON(t *testing.T, h http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var m map[string]json.RawMessage
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	}
	return rec, m
}

func TestHandleTokens(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})
	rec, _ := doJSON(t, s.Routes(), http.MethodGet, "/v1/tokens", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []tokenJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "ETH", out[0].Symbol)
	assert.Equal(t, "native", out[0].Address)
	assert.Equal(t, daiAddr, out[1].Address)
}

func TestHandleQuote(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})
	rec, m := doJSON(t, s.Routes(), http.MethodGet, "/v1/quote?amount=1&from_native=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"1813221787760298263162"`, string(m["amount_out"]))
	assert.JSONEq(t, `"1813.22"`, string(m["price"]))
}

func TestHandleQuoteDirectionFlag(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})

	// ParseBool spellings all work, including 0/1.
	rec, m := doJSON(t, s.Routes(), http.MethodGet, "/v1/quote?amount=1&from_native=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"DAI"`, string(m["in_symbol"]))

	// Garbage is a caller bug, not an implicit direction.
	rec, _ = doJSON(t, s.Routes(), http.MethodGet, "/v1/quote?amount=1&from_native=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Absent flag defaults to the native side.
	rec, m = doJSON(t, s.Routes(), http.MethodGet, "/v1/quote?amount=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"ETH"`, string(m["in_symbol"]))
}

func TestHandleQuoteMalformedAmountIsZeroQuote(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})
	rec, m := doJSON(t, s.Routes(), http.MethodGet, "/v1/quote?amount=abc", nil)
	// Parse failures are recovered locally, not surfaced as errors.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"0"`, string(m["amount_out"]))
}

func TestHandleBalancesBadAddress(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})
	rec, _ := doJSON(t, s.Routes(), http.MethodGet, "/v1/balances/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBalances(t *testing.T) {
	stable, err := tokens.FromConfig(1, daiAddr, 18, "DAI", "Dai Stablecoin")
	require.NoError(t, err)
	bal := &fakeBalances{entries: []balance.Entry{
		{Token: stable, Raw: big.NewInt(1), Amount: "0.000000000000000001"},
	}}
	s := testServer(t, &fakeSubmitter{}, bal)

	rec, _ := doJSON(t, s.Routes(), http.MethodGet, "/v1/balances/"+daiAddr, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []struct {
		Symbol string `json:"symbol"`
		Amount string `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "DAI", out[0].Symbol)
}

func TestHandleSwap(t *testing.T) {
	sub := &fakeSubmitter{
		res:  swap.Result{SwapTx: "0xdead"},
		from: common.HexToAddress("0x4444444444444444444444444444444444444444"),
	}
	s := testServer(t, sub, &fakeBalances{})

	body, _ := json.Marshal(swapRequest{Amount: "1", FromNative: true})
	rec, m := doJSON(t, s.Routes(), http.MethodPost, "/v1/swap", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"0xdead"`, string(m["swap_tx"]))

	require.NotNil(t, sub.got)
	assert.True(t, sub.got.FromNative)
	assert.Equal(t, sub.from, sub.got.To, "recipient defaults to the wallet address")
	// Default tolerance is 50 bps of the quoted output.
	assert.Equal(t, "1804155678821496771846", sub.got.MinOut.String())
}

func TestHandleSwapZeroQuoteRejected(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})
	body, _ := json.Marshal(swapRequest{Amount: "abc", FromNative: true})
	rec, _ := doJSON(t, s.Routes(), http.MethodPost, "/v1/swap", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleSwapApprovalFailure(t *testing.T) {
	sub := &fakeSubmitter{err: swap.ErrApprovalFailed}
	s := testServer(t, sub, &fakeBalances{})
	body, _ := json.Marshal(swapRequest{Amount: "1", FromNative: false})
	rec, m := doJSON(t, s.Routes(), http.MethodPost, "/v1/swap", body)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, string(m["error"]), "approval")
}

func TestHandleSwapBadRecipient(t *testing.T) {
	s := testServer(t, &fakeSubmitter{}, &fakeBalances{})
	body, _ := json.Marshal(swapRequest{Amount: "1", FromNative: true, Recipient: "bogus"})
	rec, _ := doJSON(t, s.Routes(), http.MethodPost, "/v1/swap", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
