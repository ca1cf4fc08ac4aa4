// SPDX-License-Identifier: AGPL-3.0-or-later

package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	secp256k1KeyType = "secp256k1"
	signatureLength  = 65
	recoveryIDIndex  = 64
	recoveryIDOffset = 27

	// Attempts at mnemonic + derivation before falling back to a random key.
	deriveAttempts = 3
)

// Ethereum implements Scheme for secp256k1 accounts: EIP-191 personal
// messages, EIP-55 addresses and BIP-44 derivation.
type Ethereum struct {
	path     accounts.DerivationPath
	attempts int
	logger   *slog.Logger

	newMnemonic func() (string, error)
	deriveKey   func(mnemonic string, path accounts.DerivationPath) (*ecdsa.PrivateKey, error)
	randomKey   func() (*ecdsa.PrivateKey, error)
}

// NewEthereum creates the Ethereum scheme deriving at m/44'/60'/0'/0/0.
func NewEthereum(logger *slog.Logger) *Ethereum {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ethereum{
		path:        accounts.DefaultBaseDerivationPath,
		attempts:    deriveAttempts,
		logger:      logger,
		newMnemonic: NewMnemonic,
		deriveKey:   DeriveSecp256k1,
		randomKey:   gethcrypto.GenerateKey,
	}
}

// Name returns "ethereum".
func (e *Ethereum) Name() string {
	return "ethereum"
}

// DerivationPath returns the path used by Generate.
func (e *Ethereum) DerivationPath() string {
	return e.path.String()
}

// Generate creates a mnemonic-backed wallet. When derivation keeps failing it
// returns a random key with an empty mnemonic and RandomDerivation as path, so
// a phrase is never paired with a key it does not seed.
func (e *Ethereum) Generate() (Wallet, error) {
	var lastErr error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		mnemonic, err := e.newMnemonic()
		if err != nil {
			lastErr = err
			continue
		}
		priv, err := e.deriveKey(mnemonic, e.path)
		if err != nil {
			lastErr = err
			e.logger.Warn("hd derivation failed", "attempt", attempt, "error", err)
			continue
		}
		w := ethereumWallet(priv)
		w.Mnemonic = mnemonic
		w.DerivationPath = e.path.String()
		return w, nil
	}

	e.logger.Warn("falling back to random key", "attempts", e.attempts, "error", lastErr)
	priv, err := e.randomKey()
	if err != nil {
		return Wallet{}, fmt.Errorf("random key after derivation failure (%v): %w", lastErr, err)
	}
	w := ethereumWallet(priv)
	w.DerivationPath = RandomDerivation
	return w, nil
}

// WalletFromKey accepts a hex key with or without 0x.
func (e *Ethereum) WalletFromKey(key string) (Wallet, error) {
	priv, err := parseSecp256k1Key(key)
	if err != nil {
		return Wallet{}, err
	}
	return ethereumWallet(priv), nil
}

// Sign produces a 65-byte r||s||v signature with v in {27, 28}.
func (e *Ethereum) Sign(key, message string) (Signed, error) {
	priv, err := parseSecp256k1Key(key)
	if err != nil {
		return Signed{}, err
	}

	sig, err := gethcrypto.Sign(accounts.TextHash([]byte(message)), priv)
	if err != nil {
		return Signed{}, fmt.Errorf("sign: %w", err)
	}
	sig[recoveryIDIndex] += recoveryIDOffset

	return Signed{
		Address:   gethcrypto.PubkeyToAddress(priv.PublicKey).Hex(),
		Message:   message,
		Signature: hexutil.Encode(sig),
	}, nil
}

// Verify recovers the signer address. Recovery either fails or yields some
// address, so Valid is always true on success; callers compare addresses.
func (e *Ethereum) Verify(message, signature string) (Verification, error) {
	if !has0x(signature) {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != signatureLength {
		return Verification{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, signatureLength, len(sig))
	}

	if sig[recoveryIDIndex] >= recoveryIDOffset {
		sig[recoveryIDIndex] -= recoveryIDOffset
	}
	if sig[recoveryIDIndex] > 1 {
		return Verification{}, fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[recoveryIDIndex])
	}

	pub, err := gethcrypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return Verification{}, fmt.Errorf("recover: %w", err)
	}

	return Verification{
		Address: gethcrypto.PubkeyToAddress(*pub).Hex(),
		Valid:   true,
	}, nil
}

func ethereumWallet(priv *ecdsa.PrivateKey) Wallet {
	return Wallet{
		Address:             gethcrypto.PubkeyToAddress(priv.PublicKey).Hex(),
		PrivateKey:          hexutil.Encode(gethcrypto.FromECDSA(priv)),
		PublicKey:           hexutil.Encode(gethcrypto.FromECDSAPub(&priv.PublicKey)),
		CompressedPublicKey: hexutil.Encode(gethcrypto.CompressPubkey(&priv.PublicKey)),
		KeyType:             secp256k1KeyType,
	}
}

func parseSecp256k1Key(key string) (*ecdsa.PrivateKey, error) {
	if has0x(key) {
		key = key[2:]
	}
	priv, err := gethcrypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return priv, nil
}

func has0x(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}
