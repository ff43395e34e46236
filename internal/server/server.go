package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/umarz317/uniswap-v2-dapp/internal/balance"
	"github.com/umarz317/uniswap-v2-dapp/internal/config"
	"github.com/umarz317/uniswap-v2-dapp/internal/feed"
	"github.com/umarz317/uniswap-v2-dapp/internal/quote"
	"github.com/umarz317/uniswap-v2-dapp/internal/swap"
	"github.com/umarz317/uniswap-v2-dapp/internal/tokens"
)

// Quoter is the slice of quote.Engine the API needs.
type Quoter interface {
	Quote(ctx context.Context, amountText string, fromNative bool) quote.TradeQuote
	BuildInstruction(q quote.TradeQuote, slippageBps, deadlineMinutes int, recipient common.Address) quote.Instruction
}

// BalanceSource is the slice of balance.Reader the API needs.
type BalanceSource interface {
	Balances(ctx context.Context, owner common.Address) ([]balance.Entry, error)
}

// SwapSubmitter is the slice of swap.Submitter the API needs.
type SwapSubmitter interface {
	Submit(ctx context.Context, ins quote.Instruction) (swap.Result, error)
	From() common.Address
}

type Server struct {
	cfg *config.Config
	reg *tokens.Registry
	eng Quoter
	bal BalanceSource
	sub SwapSubmitter
	pub *feed.Publisher
	log *zap.Logger
}

func New(cfg *config.Config, reg *tokens.Registry, eng Quoter, bal BalanceSource, sub SwapSubmitter, pub *feed.Publisher, log *zap.Logger) *Server {
	return &Server{cfg: cfg, reg: reg, eng: eng, bal: bal, sub: sub, pub: pub, log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(s.cfg.Server.RateLimitRPS, time.Second))

	r.Get("/v1/tokens", s.handleTokens)
	r.Get("/v1/quote", s.handleQuote)
	r.Get("/v1/balances/{address}", s.handleBalances)
	r.Post("/v1/swap", s.handleSwap)
	r.Get("/v1/ws/quotes", s.handleQuoteStream)
	return r
}

// Run serves the API until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api server starting", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type tokenJSON struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Native   bool   `json:"native"`
}

type quoteJSON struct {
	InSymbol  string `json:"in_symbol"`
	OutSymbol string `json:"out_symbol"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
	OutText   string `json:"amount_out_display"`
	Price     string `json:"price"`
}

func toQuoteJSON(q quote.TradeQuote) quoteJSON {
	return quoteJSON{
		InSymbol:  q.In.Symbol,
		OutSymbol: q.Out.Symbol,
		AmountIn:  q.AmountIn.String(),
		AmountOut: q.AmountOut.String(),
		OutText:   tokens.FormatAmount(q.AmountOut, q.Out),
		Price:     q.Price,
	}
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	all := s.reg.All()
	out := make([]tokenJSON, len(all))
	for i, t := range all {
		addr := "native"
		if !t.Native {
			addr = tokens.ChecksumAddress(t.Address)
		}
		out[i] = tokenJSON{
			Symbol:   t.Symbol,
			Name:     t.Name,
			Address:  addr,
			Decimals: t.Decimals,
			Native:   t.Native,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleQuote always answers 200 for amount problems: malformed amounts
// and missing pools are recovered locally as a zero quote, per the form's
// behaviour. An unparseable direction flag is a caller bug and gets 400.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	amount := r.URL.Query().Get("amount")
	fromNative := true
	if v := r.URL.Query().Get("from_native"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad from_native")
			return
		}
		fromNative = b
	}
	q := s.eng.Quote(r.Context(), amount, fromNative)
	writeJSON(w, http.StatusOK, toQuoteJSON(q))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, http.StatusBadRequest, "bad address")
		return
	}
	entries, err := s.bal.Balances(r.Context(), common.HexToAddress(raw))
	if err != nil {
		s.log.Warn("balance read failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "balance read failed")
		return
	}
	type entryJSON struct {
		Symbol string `json:"symbol"`
		Raw    string `json:"raw"`
		Amount string `json:"amount"`
	}
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryJSON{Symbol: e.Token.Symbol, Raw: e.Raw.String(), Amount: e.Amount}
	}
	writeJSON(w, http.StatusOK, out)
}

type swapRequest struct {
	Amount     string `json:"amount"`
	FromNative bool   `json:"from_native"`
	Recipient  string `json:"recipient"`
}

type swapResponse struct {
	Quote      quoteJSON `json:"quote"`
	MinOut     string    `json:"min_out"`
	Deadline   int64     `json:"deadline"`
	ApprovalTx string    `json:"approval_tx,omitempty"`
	SwapTx     string    `json:"swap_tx"`
}

// handleSwap quotes fresh, builds a one-shot instruction and submits it.
// The approval (for ERC-20 input) and the router call are both awaited, so
// this handler can take a while on a congested chain.
func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	recipient := s.sub.From()
	if req.Recipient != "" {
		if !common.IsHexAddress(req.Recipient) {
			writeError(w, http.StatusBadRequest, "bad recipient")
			return
		}
		recipient = common.HexToAddress(req.Recipient)
	}

	q := s.eng.Quote(r.Context(), req.Amount, req.FromNative)
	if q.AmountOut.Sign() <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "nothing to swap: zero quote")
		return
	}

	ins := s.eng.BuildInstruction(q, s.cfg.SlippageBps(), s.cfg.Trade.DeadlineMinutes, recipient)
	res, err := s.sub.Submit(r.Context(), ins)
	if err != nil {
		s.log.Error("swap submission failed", zap.Error(err))
		switch {
		case errors.Is(err, swap.ErrApprovalFailed):
			writeError(w, http.StatusBadGateway, "approval failed; swap not attempted")
		case errors.Is(err, swap.ErrSwapExecution):
			writeError(w, http.StatusBadGateway, "swap failed")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	if err := s.pub.Publish(r.Context(), feed.Event{
		SwapTx:     res.SwapTx,
		ApprovalTx: res.ApprovalTx,
		InSymbol:   q.In.Symbol,
		OutSymbol:  q.Out.Symbol,
		AmountIn:   ins.AmountIn.String(),
		MinOut:     ins.MinOut.String(),
		Recipient:  recipient.Hex(),
	}); err != nil {
		s.log.Warn("feed publish failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, swapResponse{
		Quote:      toQuoteJSON(q),
		MinOut:     ins.MinOut.String(),
		Deadline:   ins.Deadline.Int64(),
		ApprovalTx: res.ApprovalTx,
		SwapTx:     res.SwapTx,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
