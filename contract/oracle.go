// Package contract holds the messages understood by the oracle CosmWasm contract
package contract

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"

	"github.com/sljivkov/nibifeed/domain"
)

var (
	ErrInvalidTokenID = errors.New("token id must be positive")
	ErrEmptyPrice     = errors.New("price must not be empty")
)

// ExecuteMsg is the JSON envelope of an oracle contract execution
type ExecuteMsg struct {
	SetPrice *SetPrice `json:"set_price,omitempty"`
}

// SetPrice records the USD price of one token
type SetPrice struct {
	TokenID  domain.TokenID `json:"token_id"`
	PriceUSD string         `json:"price_usd"` // already in contract units, never rescaled
}

// NewSetPrice builds a set_price execution for the given token
func NewSetPrice(id domain.TokenID, price string) ExecuteMsg {
	return ExecuteMsg{SetPrice: &SetPrice{TokenID: id, PriceUSD: price}}
}

func (m ExecuteMsg) validate() error {
	if m.SetPrice == nil {
		return errors.New("empty execute message")
	}

	if m.SetPrice.TokenID == 0 {
		return ErrInvalidTokenID
	}

	if m.SetPrice.PriceUSD == "" {
		return ErrEmptyPrice
	}

	return nil
}

// Marshal returns the JSON payload sent to the contract
func (m ExecuteMsg) Marshal() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	return json.Marshal(m)
}

// Base64 returns the payload the way it appears in the JSON rendering of the tx
func (m ExecuteMsg) Base64() (string, error) {
	bz, err := m.Marshal()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(bz), nil
}

// NewExecuteContract wraps the payload in a MsgExecuteContract sent without funds
func NewExecuteContract(sender, contractAddr string, m ExecuteMsg) (*wasmtypes.MsgExecuteContract, error) {
	payload, err := m.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute message: %w", err)
	}

	return &wasmtypes.MsgExecuteContract{
		Sender:   sender,
		Contract: contractAddr,
		Msg:      wasmtypes.RawContractMessage(payload),
	}, nil
}
