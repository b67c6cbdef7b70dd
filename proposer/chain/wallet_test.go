package chain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletFromHexKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hexutil.Encode(crypto.FromECDSA(key))

	w, err := NewWallet(hexKey, "")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), w.Address())

	// Unprefixed keys load too.
	w, err = NewWallet(strings.TrimPrefix(hexKey, "0x"), "")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), w.Address())
}

func TestWalletRejectsGarbage(t *testing.T) {
	_, err := NewWallet(filepath.Join(t.TempDir(), "missing"), "")
	require.Error(t, err)

	// A readable file that is not a keystore fails at decryption.
	path := filepath.Join(t.TempDir(), "not-a-keystore")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))
	pwPath := filepath.Join(t.TempDir(), "password")
	require.NoError(t, os.WriteFile(pwPath, []byte("secret"), 0600))
	_, err = NewWallet(path, pwPath)
	require.Error(t, err)

	_, err = NewWallet(path, "")
	require.Error(t, err)
}

func TestSignPersonalRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	w := &Wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}

	payload := []byte(`{"action":"send","nonce":1}`)
	sig, err := w.SignPersonal(payload)
	require.NoError(t, err)
	assert.Len(t, sig, 2+130)

	signer, err := RecoverPersonalSigner(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), signer)

	// A different payload recovers a different signer.
	other, err := RecoverPersonalSigner([]byte("tampered"), sig)
	require.NoError(t, err)
	assert.NotEqual(t, w.Address(), other)
}

func TestRecoverPersonalSignerRejects(t *testing.T) {
	_, err := RecoverPersonalSigner([]byte("x"), "not-hex")
	require.Error(t, err)

	_, err = RecoverPersonalSigner([]byte("x"), "0x"+strings.Repeat("ab", 64))
	require.Error(t, err)

	// Recovery id outside {27, 28}.
	sig := make([]byte, 65)
	sig[64] = 5
	_, err = RecoverPersonalSigner([]byte("x"), hexutil.Encode(sig))
	require.Error(t, err)
}
