package chains

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/cosmos/cosmos-sdk/client"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog/log"

	"github.com/sljivkov/nibifeed/domain"
)

// signer signs a message, broadcasts it and waits until it lands in a block
type signer interface {
	SignAndBroadcast(ctx context.Context, msg sdk.Msg) (domain.TxResult, error)
}

// txLookup finds a committed tx by hash
type txLookup interface {
	Tx(ctx context.Context, hash []byte, prove bool) (*coretypes.ResultTx, error)
}

// cosmosSigner signs with a fixed fee and gas limit; gas is never simulated
type cosmosSigner struct {
	clientCtx client.Context
	factory   clienttx.Factory
	lookup    txLookup
	from      Identity
	backoff   []time.Duration
}

func (s *cosmosSigner) SignAndBroadcast(ctx context.Context, msg sdk.Msg) (domain.TxResult, error) {
	txBytes, seq, err := s.signTx(ctx, msg)
	if err != nil {
		return domain.TxResult{}, err
	}

	res, err := s.clientCtx.BroadcastTxSync(txBytes)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("%w: %v", ErrBroadcast, err)
	}

	if err := checkBroadcast(res); err != nil {
		return domain.TxResult{}, err
	}

	log.Debug().Str("tx_hash", res.TxHash).Uint64("sequence", seq).Msg("📨 Broadcast accepted, waiting for inclusion")

	return s.awaitInclusion(ctx, res.TxHash)
}

// signTx builds and signs msg at the signer's current sequence and returns the encoded tx
func (s *cosmosSigner) signTx(ctx context.Context, msg sdk.Msg) ([]byte, uint64, error) {
	accNum, seq, err := s.clientCtx.AccountRetriever.GetAccountNumberSequence(s.clientCtx.WithCmdContext(ctx), s.from.Address)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to query account %s: %v", ErrBroadcast, s.from.Bech32, err)
	}

	factory := s.factory.WithAccountNumber(accNum).WithSequence(seq)

	builder, err := factory.BuildUnsignedTx(msg)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to build tx: %v", ErrBroadcast, err)
	}

	if err := clienttx.Sign(ctx, factory, s.from.Name, builder, true); err != nil {
		return nil, 0, fmt.Errorf("%w: failed to sign tx: %v", ErrBroadcast, err)
	}

	txBytes, err := s.clientCtx.TxConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, 0, fmt.Errorf("%w: failed to encode tx: %v", ErrBroadcast, err)
	}

	return txBytes, seq, nil
}

// checkBroadcast turns a CheckTx rejection into an error
func checkBroadcast(res *sdk.TxResponse) error {
	if res == nil {
		return fmt.Errorf("%w: empty broadcast response", ErrBroadcast)
	}

	if res.Code != 0 {
		return fmt.Errorf("%w: tx %s rejected by %s with code %d: %s",
			ErrBroadcast, res.TxHash, res.Codespace, res.Code, res.RawLog)
	}

	return nil
}

// awaitInclusion polls the node until the tx is committed or the backoff runs out.
// Only the lookup is retried, the tx itself is never resubmitted.
func (s *cosmosSigner) awaitInclusion(ctx context.Context, txHash string) (domain.TxResult, error) {
	hash, err := hex.DecodeString(txHash)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("%w: invalid tx hash %q: %v", ErrBroadcast, txHash, err)
	}

	var committed *coretypes.ResultTx

	r := retrier.New(s.backoff, nil)
	err = r.RunCtx(ctx, func(ctx context.Context) error {
		res, err := s.lookup.Tx(ctx, hash, false)
		if err != nil {
			return err
		}

		committed = res

		return nil
	})
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("%w: tx %s not included: %v", ErrBroadcast, txHash, err)
	}

	if committed.TxResult.Code != 0 {
		return domain.TxResult{}, fmt.Errorf("%w: tx %s failed at height %d with code %d: %s",
			ErrBroadcast, txHash, committed.Height, committed.TxResult.Code, committed.TxResult.Log)
	}

	return domain.TxResult{
		Hash:      txHash,
		GasUsed:   committed.TxResult.GasUsed,
		GasWanted: committed.TxResult.GasWanted,
		Height:    committed.Height,
	}, nil
}
