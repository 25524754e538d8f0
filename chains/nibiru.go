package chains

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	sdk "github.com/cosmos/cosmos-sdk/types"
	signingtypes "github.com/cosmos/cosmos-sdk/types/tx/signing"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog/log"

	"github.com/sljivkov/nibifeed/config"
	"github.com/sljivkov/nibifeed/contract"
	"github.com/sljivkov/nibifeed/domain"
)

// NibiruClient implements domain.PriceSubmitter against the oracle contract
type NibiruClient struct {
	identity Identity
	contract string
	signer   signer
}

// NewNibiruClient derives the signer from the mnemonic and connects to the node
func NewNibiruClient(ctx context.Context, cfg config.Chain) (*NibiruClient, error) {
	log.Info().Msg("🔧 Setting up client...")

	setAddressPrefixes(cfg.Prefix)

	enc, err := newEncoding(cfg.Prefix)
	if err != nil {
		return nil, err
	}

	kr := keyring.NewInMemory(enc.codec)

	identity, err := deriveIdentity(kr, cfg.Mnemonic, cfg.HDPath, cfg.Prefix)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("address", identity.Bech32).
		Str("evm_address", identity.EVMAddress()).
		Str("hd_path", cfg.HDPath).
		Msg("🔑 Wallet created successfully")

	rpc, err := client.NewClientFromNode(cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	status, err := rpc.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, cfg.RPC, err)
	}

	if status.NodeInfo.Network != cfg.ChainID {
		return nil, fmt.Errorf("%w: node serves chain %q, expected %q", ErrConnection, status.NodeInfo.Network, cfg.ChainID)
	}

	log.Info().
		Str("rpc", cfg.RPC).
		Str("chain_id", status.NodeInfo.Network).
		Int64("height", status.SyncInfo.LatestBlockHeight).
		Msg("🔌 Client connected successfully")

	if ok, err := feeCoversGas(cfg); err == nil && !ok {
		log.Warn().
			Str("fee", cfg.Fees()).
			Uint64("gas_limit", cfg.GasLimit).
			Str("gas_prices", cfg.GasPrices).
			Msg("⚠️ Fixed fee is below gas limit times gas price, txs may be rejected")
	}

	clientCtx, factory := newTxContext(cfg, enc, kr, identity)
	clientCtx = clientCtx.WithClient(rpc).WithNodeURI(cfg.RPC)

	return &NibiruClient{
		identity: identity,
		contract: cfg.Contract,
		signer: &cosmosSigner{
			clientCtx: clientCtx,
			factory:   factory,
			lookup:    rpc,
			from:      identity,
			backoff:   retrier.ConstantBackoff(cfg.TxPollRetries, cfg.TxPollInterval()),
		},
	}, nil
}

// Address returns the bech32 address of the signer
func (c *NibiruClient) Address() string {
	return c.identity.Bech32
}

// UpdatePrice sends one set_price execution to the oracle contract
func (c *NibiruClient) UpdatePrice(ctx context.Context, id domain.TokenID, price string) (domain.TxResult, error) {
	execMsg := contract.NewSetPrice(id, price)

	msg, err := contract.NewExecuteContract(c.identity.Bech32, c.contract, execMsg)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("%w: %v", ErrBroadcast, err)
	}

	log.Info().
		Uint32("token_id", uint32(id)).
		Str("price_usd", price).
		Msg("📝 Updating price")
	log.Debug().
		Str("sender", msg.Sender).
		Str("contract", msg.Contract).
		Str("msg", base64.StdEncoding.EncodeToString(msg.Msg)).
		Msg("execute contract message")

	res, err := c.signer.SignAndBroadcast(ctx, msg)
	if err != nil {
		if !errors.Is(err, ErrBroadcast) {
			err = fmt.Errorf("%w: %v", ErrBroadcast, err)
		}

		return domain.TxResult{}, err
	}

	log.Info().
		Uint32("token_id", uint32(id)).
		Str("tx_hash", res.Hash).
		Int64("gas_used", res.GasUsed).
		Int64("gas_wanted", res.GasWanted).
		Int64("height", res.Height).
		Msg("✅ Price update successful")

	return res, nil
}

// newTxContext builds the client context and tx factory signing as identity
// with the fixed fee and gas limit. The node client is attached by the caller.
func newTxContext(cfg config.Chain, enc encoding, kr keyring.Keyring, identity Identity) (client.Context, clienttx.Factory) {
	clientCtx := client.Context{}.
		WithCodec(enc.codec).
		WithInterfaceRegistry(enc.registry).
		WithTxConfig(enc.txConfig).
		WithAccountRetriever(authtypes.AccountRetriever{}).
		WithChainID(cfg.ChainID).
		WithKeyring(kr).
		WithFromName(identity.Name).
		WithFromAddress(identity.Address).
		WithBroadcastMode(flags.BroadcastSync)

	factory := clienttx.Factory{}.
		WithTxConfig(enc.txConfig).
		WithAccountRetriever(clientCtx.AccountRetriever).
		WithKeybase(kr).
		WithChainID(cfg.ChainID).
		WithGas(cfg.GasLimit).
		WithFees(cfg.Fees()).
		WithSignMode(signingtypes.SignMode_SIGN_MODE_DIRECT)

	return clientCtx, factory
}

// feeCoversGas reports whether the fixed fee pays gas limit times the configured gas price
func feeCoversGas(cfg config.Chain) (bool, error) {
	prices, err := sdk.ParseDecCoins(cfg.GasPrices)
	if err != nil {
		return false, err
	}

	required := prices.AmountOf(cfg.FeeDenom).MulInt64(int64(cfg.GasLimit))

	return math.LegacyNewDec(cfg.FeeAmount).GTE(required), nil
}
