// Package chain wraps the node's view of the settlement chain: the
// proposer wallet, the tracker contracts, and the provider-level transfer
// queries used by deposit discovery.
package chain

import (
	"crypto/ecdsa"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Wallet holds the proposer's secp256k1 key and signs with the EIP-191
// personal-sign scheme used across the protocol.
type Wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewWallet loads the proposer key. keySpec is either the raw hex key or a
// path to a geth keystore file, in which case passwordFile must name a file
// holding the decryption password.
func NewWallet(keySpec, passwordFile string) (*Wallet, error) {
	spec := strings.TrimSpace(keySpec)
	if key, err := crypto.HexToECDSA(strings.TrimPrefix(spec, "0x")); err == nil {
		return &Wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
	}
	keyJSON, err := os.ReadFile(spec)
	if err != nil {
		return nil, errors.Wrap(err, "proposer key is neither a hex key nor a readable keystore file")
	}
	if passwordFile == "" {
		return nil, errors.New("keystore file requires a wallet password file")
	}
	password, err := os.ReadFile(passwordFile)
	if err != nil {
		return nil, errors.Wrap(err, "could not read wallet password file")
	}
	key, err := keystore.DecryptKey(keyJSON, strings.TrimSpace(string(password)))
	if err != nil {
		return nil, errors.Wrap(err, "could not decrypt keystore")
	}
	return &Wallet{key: key.PrivateKey, address: crypto.PubkeyToAddress(key.PrivateKey.PublicKey)}, nil
}

// Address returns the address recovered from the key.
func (w *Wallet) Address() common.Address {
	return w.address
}

// SignPersonal signs keccak256("\x19Ethereum Signed Message:\n" + len +
// payload) and returns the 65-byte signature as 0x-hex with V in {27, 28}.
func (w *Wallet) SignPersonal(payload []byte) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash(payload), w.key)
	if err != nil {
		return "", errors.Wrap(err, "could not sign payload")
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// RecoverPersonalSigner recovers the address that personal-signed payload.
// The signature must be 65 bytes of 0x-hex with V in {27, 28}.
func RecoverPersonalSigner(payload []byte, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "malformed signature")
	}
	if len(sig) != 65 {
		return common.Address{}, errors.Errorf("signature is %d bytes, want 65", len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		return common.Address{}, errors.Errorf("invalid recovery id %d", sig[64])
	}
	cp := make([]byte, len(sig))
	copy(cp, sig)
	cp[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(payload), cp)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "could not recover signer")
	}
	return crypto.PubkeyToAddress(*pub), nil
}
