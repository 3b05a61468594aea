package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/heatpilot/heatpilot/pkg/log"
	"github.com/heatpilot/heatpilot/pkg/pricing"
)

// handleSavings projects the estimated savings for the current day:
// accumulated cycles so far plus the remaining hours weighted by the price
// outlook.
func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := s.getDeviceID(r)

	eng, err := s.engineFor(ctx, deviceID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to hydrate engine", slog.Any("error", err))
		writeJSONError(w, "failed to hydrate engine", http.StatusInternalServerError)
		return
	}

	now := time.Now()

	// the newest record from the current day carries the hourly run rate
	var hourlySavings float64
	records := eng.HistoricalSnapshot()
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Timestamp.Year() == now.Year() && records[i].Timestamp.YearDay() == now.YearDay() {
			hourlySavings = records[i].Savings
			break
		}
	}

	var currentPrice float64
	current, err := s.prices.CurrentPrice(ctx)
	switch {
	case err == nil:
		currentPrice = current.Price
	case errors.Is(err, pricing.ErrNoCurrentPrice):
		// projection falls back to a flat outlook
	default:
		log.Ctx(ctx).WarnContext(ctx, "failed to get current price", slog.Any("error", err))
	}

	future, err := s.prices.FuturePrices(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to get future prices", slog.Any("error", err))
	}

	daily := eng.EstimateDailySavings(now, hourlySavings, currentPrice, future)

	writeJSON(w, map[string]interface{}{
		"hourlySavings": hourlySavings,
		"dailyEstimate": daily,
	})
}
