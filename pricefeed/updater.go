// Package pricefeed runs the fetch-and-submit cycle of the oracle updater
package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sljivkov/nibifeed/domain"
)

// CycleReport lists the outcome of every token of one cycle, in submission order
type CycleReport struct {
	Submitted []domain.TokenID
	Failed    []domain.TokenID
}

// Updater fetches the current prices and writes them to the chain one by one
type Updater struct {
	source    domain.RateSource
	submitter domain.PriceSubmitter
	limiter   *rate.Limiter
}

// UpdaterOption is a function that modifies Updater
type UpdaterOption func(*Updater)

// WithSubmitSpacing enforces a minimum delay between two broadcasts.
// Zero or less means no pacing.
func WithSubmitSpacing(d time.Duration) UpdaterOption {
	return func(u *Updater) {
		u.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewUpdater creates a new Updater
func NewUpdater(source domain.RateSource, submitter domain.PriceSubmitter, opts ...UpdaterOption) *Updater {
	u := &Updater{
		source:    source,
		submitter: submitter,
		limiter:   rate.NewLimiter(rate.Inf, 1),
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// UpdateAll runs one cycle. A fetch failure aborts the cycle; a submission
// failure only skips that token.
func (u *Updater) UpdateAll(ctx context.Context) (CycleReport, error) {
	var report CycleReport

	prices, err := u.source.FetchRates(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to fetch exchange rates: %w", err)
	}

	if len(prices) == 0 {
		log.Warn().Msg("⚠️ No known tokens in exchange rates, nothing to update")

		return report, nil
	}

	for _, id := range prices.IDs() {
		if err := u.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("cycle interrupted: %w", err)
		}

		price := prices[id]

		if _, err := u.submitter.UpdatePrice(ctx, id, price); err != nil {
			log.Error().
				Err(err).
				Uint32("token_id", uint32(id)).
				Str("price_usd", price).
				Msg("❌ Failed to update price")

			report.Failed = append(report.Failed, id)

			continue
		}

		log.Info().
			Uint32("token_id", uint32(id)).
			Str("price_usd", price).
			Msg("Updated price for token")

		report.Submitted = append(report.Submitted, id)
	}

	return report, nil
}
