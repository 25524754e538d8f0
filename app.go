package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sljivkov/nibifeed/chains"
	"github.com/sljivkov/nibifeed/config"
	"github.com/sljivkov/nibifeed/pricefeed"
	"github.com/sljivkov/nibifeed/sources"
)

// service wires the rate source and the chain client into the scheduler
type service struct {
	cfg config.Config
}

func newService(cfg config.Config) *service {
	return &service{cfg: cfg}
}

// Run sets everything up and blocks until ctx is cancelled.
// Any error returned is a startup failure.
func (s *service) Run(ctx context.Context) error {
	log.Info().
		Bool("valid", chains.ValidateMnemonic(s.cfg.Mnemonic)).
		Msg("Is the mnemonic valid?")

	client, err := chains.NewNibiruClient(ctx, s.cfg.Chain)
	if err != nil {
		return err
	}

	source, err := sources.NewNibidSource(s.cfg.RatesCommandArgs())
	if err != nil {
		return err
	}

	log.Info().
		Str("sender", client.Address()).
		Str("contract", s.cfg.Contract).
		Str("rates_command", source.String()).
		Msg("Price feed configured")

	updater := pricefeed.NewUpdater(source, client, pricefeed.WithSubmitSpacing(s.cfg.SubmitSpacing()))

	return pricefeed.NewScheduler(updater, s.cfg.Interval()).Run(ctx)
}
