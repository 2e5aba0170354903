package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/5G-Cash/bulwark-explorer/internal/carver/model"
)

// Decoder classifies a scriptPubKey into the label and kind the ledger
// should account the owning output under. It is generalized from the
// teacher's address-string extraction into a full label/kind classifier,
// since the MovementBuilder needs to know not just an address string but
// whether the output is spendable, nonstandard, or unparseable.
type Decoder interface {
	Decode(addresses []string, scriptPubKeyHex string) (model.Label, model.AddressKind, error)
}

// scriptDecoder extracts addresses from raw scriptPubKeys using
// txscript, for the case the node's RPC response omits a pre-decoded
// address list.
type scriptDecoder struct {
	params *chaincfg.Params
}

// NewScriptDecoder builds a Decoder bound to the chain params of network.
func NewScriptDecoder(network string) (Decoder, error) {
	params, err := chainParamsForNetwork(network)
	if err != nil {
		return nil, err
	}
	return &scriptDecoder{params: params}, nil
}

// Decode returns the label an output's value should be credited to.
// addresses is the node's own decoded address list, if any; when empty,
// the scriptPubKey is parsed directly. A nonstandard script yields
// KindUnknown rather than an error — the MovementBuilder still needs a
// label to hang the movement on, it just cannot attribute it to a
// wallet-controlled address. An empty script, or one that is not valid
// hex, is an error.
func (d *scriptDecoder) Decode(addresses []string, scriptPubKeyHex string) (model.Label, model.AddressKind, error) {
	if len(addresses) == 1 {
		return model.Label(addresses[0]), model.KindAddress, nil
	}
	if len(addresses) > 1 {
		// Multisig outputs with more than one decoded address have no
		// single owning entity in this ledger's model; fall back to the
		// raw script as a stable, if opaque, label.
		return model.Label("script:" + scriptPubKeyHex), model.KindUnknown, nil
	}

	decoded, err := d.decodeFromScript(scriptPubKeyHex)
	if err != nil {
		return "", "", err
	}
	if len(decoded) == 1 {
		return model.Label(decoded[0]), model.KindAddress, nil
	}
	if scriptPubKeyHex == "" {
		return "", model.KindUnknown, fmt.Errorf("decode: empty scriptPubKey")
	}
	return model.Label("script:" + scriptPubKeyHex), model.KindUnknown, nil
}

func (d *scriptDecoder) decodeFromScript(scriptPubKeyHex string) ([]string, error) {
	if scriptPubKeyHex == "" {
		return nil, nil
	}
	scriptBytes, err := hex.DecodeString(scriptPubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode scriptPubKey hex: %w", err)
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptBytes, d.params)
	if err != nil {
		// A script txscript can't classify (e.g. OP_RETURN data carriers)
		// is not an engine error — it is simply unattributable.
		return nil, nil
	}
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		result = append(result, addr.EncodeAddress())
	}
	return result, nil
}

func chainParamsForNetwork(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
