// Package sources provides exchange rate sources for the price feed
package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sljivkov/nibifeed/domain"
)

// ErrCommandExecution is returned when the rate query command fails or prints garbage
var ErrCommandExecution = errors.New("rate command execution failed")

// DefaultCommand queries the chain oracle module through the nibid CLI
var DefaultCommand = []string{"nibid", "q", "oracle", "exchange-rates", "-o", "json"}

// ratesResponse is the JSON printed by the exchange rate query.
// ExchangeRates is nil when the field is missing or null.
type ratesResponse struct {
	ExchangeRates *[]domain.ExchangeRate `json:"exchange_rates"`
}

// NibidSource implements domain.RateSource by running the nibid CLI
type NibidSource struct {
	name string
	args []string
}

// NewNibidSource creates a rate source running the given command line
func NewNibidSource(command []string) (*NibidSource, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("%w: empty command", ErrCommandExecution)
	}

	return &NibidSource{
		name: command[0],
		args: command[1:],
	}, nil
}

func (n *NibidSource) String() string {
	return strings.Join(append([]string{n.name}, n.args...), " ")
}

// run executes the command and returns its stdout.
// Captured output is logged on failure since nibid reports most problems on stderr.
func (n *NibidSource) run(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, n.name, n.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("command", n.String()).
			Str("stdout", stdout.String()).
			Str("stderr", stderr.String()).
			Msg("❌ Error fetching exchange rates")

		return nil, fmt.Errorf("%w: %s: %v", ErrCommandExecution, n, err)
	}

	return stdout.Bytes(), nil
}

// Rates returns the raw exchange rate records
func (n *NibidSource) Rates(ctx context.Context) ([]domain.ExchangeRate, error) {
	out, err := n.run(ctx)
	if err != nil {
		return nil, err
	}

	var resp ratesResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		log.Error().
			Err(err).
			Str("command", n.String()).
			Str("stdout", string(out)).
			Msg("❌ Failed to decode exchange rates")

		return nil, fmt.Errorf("%w: failed to decode output: %v", ErrCommandExecution, err)
	}

	if resp.ExchangeRates == nil {
		log.Error().
			Str("command", n.String()).
			Str("stdout", string(out)).
			Msg("❌ Output has no exchange_rates list")

		return nil, fmt.Errorf("%w: output has no exchange_rates list", ErrCommandExecution)
	}

	return *resp.ExchangeRates, nil
}

// FetchRates implements domain.RateSource
func (n *NibidSource) FetchRates(ctx context.Context) (domain.TokenPrices, error) {
	rates, err := n.Rates(ctx)
	if err != nil {
		return nil, err
	}

	prices := MapRates(rates)
	log.Info().
		Int("records", len(rates)).
		Int("tokens", len(prices)).
		Msg("✅ Successfully fetched exchange rates")

	return prices, nil
}
