// SPDX-License-Identifier: AGPL-3.0-or-later

package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// 128 bits of entropy gives a 12-word phrase.
const mnemonicEntropyBits = 128

// NewMnemonic returns a fresh random BIP-39 phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("new entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("new mnemonic: %w", err)
	}
	return mnemonic, nil
}

// DeriveSecp256k1 derives the BIP-32 child key at path from a BIP-39 phrase
// with an empty passphrase.
func DeriveSecp256k1(mnemonic string, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("mnemonic seed: %w", err)
	}

	// Network params only affect the xprv serialization version, not derivation.
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	for _, index := range path {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("derive %s at %d: %w", path, index, err)
		}
	}

	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("child private key: %w", err)
	}
	return gethcrypto.ToECDSA(ecPriv.Serialize())
}
