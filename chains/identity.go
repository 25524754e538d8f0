// Package chains provides blockchain interaction implementations
package chains

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/x/tx/signing"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/codec"
	addresscodec "github.com/cosmos/cosmos-sdk/codec/address"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/hd"
	"github.com/cosmos/cosmos-sdk/crypto/keyring"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"
	"github.com/cosmos/go-bip39"
	"github.com/cosmos/gogoproto/proto"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrNoAccount       = errors.New("no account found in the wallet")
	ErrConnection      = errors.New("failed to connect to node")
	ErrBroadcast       = errors.New("failed to broadcast price update")
)

// keyName is the in-memory keyring entry holding the signer
const keyName = "oracle"

var prefixOnce sync.Once

// ValidateMnemonic reports whether the phrase is a valid BIP-39 mnemonic.
// It never touches the network.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// Identity is the signing key and the address derived from it
type Identity struct {
	Name    string
	Address sdk.AccAddress
	Bech32  string
}

// EVMAddress renders the same account bytes as a 0x address, the way Nibiru
// maps bech32 accounts onto its EVM
func (i Identity) EVMAddress() string {
	return common.BytesToAddress(i.Address).Hex()
}

// encoding bundles the codecs needed to build, sign and decode txs
type encoding struct {
	registry codectypes.InterfaceRegistry
	codec    codec.Codec
	txConfig client.TxConfig
}

func newEncoding(prefix string) (encoding, error) {
	registry, err := codectypes.NewInterfaceRegistryWithOptions(codectypes.InterfaceRegistryOptions{
		ProtoFiles: proto.HybridResolver,
		SigningOptions: signing.Options{
			AddressCodec:          addresscodec.NewBech32Codec(prefix),
			ValidatorAddressCodec: addresscodec.NewBech32Codec(prefix + sdk.PrefixValidator + sdk.PrefixOperator),
		},
	})
	if err != nil {
		return encoding{}, fmt.Errorf("failed to create interface registry: %w", err)
	}

	std.RegisterInterfaces(registry)
	authtypes.RegisterInterfaces(registry)
	wasmtypes.RegisterInterfaces(registry)

	cdc := codec.NewProtoCodec(registry)

	return encoding{
		registry: registry,
		codec:    cdc,
		txConfig: authtx.NewTxConfig(cdc, authtx.DefaultSignModes),
	}, nil
}

// setAddressPrefixes points the SDK global bech32 config at the chain prefix.
// Account queries render addresses through it.
func setAddressPrefixes(prefix string) {
	prefixOnce.Do(func() {
		cfg := sdk.GetConfig()
		cfg.SetBech32PrefixForAccount(prefix, prefix+sdk.PrefixPublic)
		cfg.SetBech32PrefixForValidator(
			prefix+sdk.PrefixValidator+sdk.PrefixOperator,
			prefix+sdk.PrefixValidator+sdk.PrefixOperator+sdk.PrefixPublic,
		)
		cfg.SetBech32PrefixForConsensusNode(
			prefix+sdk.PrefixValidator+sdk.PrefixConsensus,
			prefix+sdk.PrefixValidator+sdk.PrefixConsensus+sdk.PrefixPublic,
		)
	})
}

// deriveIdentity imports the mnemonic into the keyring on the given HD path
func deriveIdentity(kr keyring.Keyring, mnemonic, hdPath, prefix string) (Identity, error) {
	if !ValidateMnemonic(mnemonic) {
		return Identity{}, ErrInvalidMnemonic
	}

	record, err := kr.NewAccount(keyName, mnemonic, "", hdPath, hd.Secp256k1)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoAccount, err)
	}

	addr, err := record.GetAddress()
	if err != nil || addr.Empty() {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoAccount, err)
	}

	bech, err := sdk.Bech32ifyAddressBytes(prefix, addr)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNoAccount, err)
	}

	return Identity{
		Name:    keyName,
		Address: addr,
		Bech32:  bech,
	}, nil
}
