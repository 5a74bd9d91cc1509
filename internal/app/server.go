package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"futures-sim-bot/internal/balance"
	"futures-sim-bot/internal/engine"
	"futures-sim-bot/internal/pricing"
	"futures-sim-bot/internal/sizing"
	"futures-sim-bot/internal/state"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Serve runs the HTTP surface the external dashboard renders from:
// JSON endpoints mirroring the CLI operations plus /metrics. It blocks
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.live != nil {
		if err := a.live.Start(ctx, a.cfg.Market.Symbols); err != nil {
			a.log.Warn("price stream start failed, falling back to REST", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prices", a.handlePrices)
	mux.HandleFunc("GET /api/balance", a.handleBalance)
	mux.HandleFunc("GET /api/portfolio", a.handlePortfolio)
	mux.HandleFunc("GET /api/history", a.handleHistory)
	mux.HandleFunc("POST /api/trades", a.handleTrade)
	mux.HandleFunc("POST /api/size", a.handleSize)
	mux.Handle("GET /metrics", a.prom.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              a.cfg.Serve.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("serving", zap.String("addr", a.cfg.Serve.Addr), zap.String("mode", a.cfg.Mode))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (a *App) handlePrices(w http.ResponseWriter, r *http.Request) {
	tickers, err := a.Prices(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, tickers)
}

func (a *App) handleBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := a.Balance(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, bal)
}

func (a *App) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Summarize(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, summary)
}

func (a *App) handleHistory(w http.ResponseWriter, r *http.Request) {
	trades, err := a.History(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, trades)
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (a *App) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody("malformed request: "+err.Error()))
		return
	}
	side, err := engine.ParseSide(req.Side)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	trade, err := a.execute(r.Context(), req.Symbol, side, req.Quantity)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, trade)
}

type sizeRequest struct {
	Symbol               string          `json:"symbol"`
	AccountEquity        decimal.Decimal `json:"account_equity"`
	RiskFraction         decimal.Decimal `json:"risk_fraction"`
	StopDistanceFraction decimal.Decimal `json:"stop_distance_fraction"`
	Leverage             decimal.Decimal `json:"leverage"`
}

func (a *App) handleSize(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorBody("malformed request: "+err.Error()))
		return
	}
	result, err := a.CalcSize(r.Context(), req.Symbol, sizing.RiskParameters{
		AccountEquity:        req.AccountEquity,
		RiskFraction:         req.RiskFraction,
		StopDistanceFraction: req.StopDistanceFraction,
		Leverage:             req.Leverage,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *App) writeError(w http.ResponseWriter, err error) {
	a.writeJSON(w, statusFor(err), errorBody(err.Error()))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrUnknownSymbol):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidQuantity),
		errors.Is(err, sizing.ErrInvalidRisk),
		errors.Is(err, sizing.ErrQuantityTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, balance.ErrInsufficientFunds):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, state.ErrCorruptSnapshot),
		errors.Is(err, engine.ErrPersistenceFailure):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("response encode failed", zap.Error(err))
	}
}
