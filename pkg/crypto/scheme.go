// SPDX-License-Identifier: AGPL-3.0-or-later

// Package crypto provides the signing and key-management capability for each
// supported chain. Every primitive is delegated to an established library; this
// package only adapts inputs and encodes outputs.
package crypto

import "errors"

var (
	ErrMalformedKey       = errors.New("malformed private key")
	ErrMalformedSignature = errors.New("malformed signature")
)

// RandomDerivation is reported as the derivation path of a key that was not
// derived from a mnemonic.
const RandomDerivation = "random"

// Scheme is the capability implemented by each chain.
type Scheme interface {
	// Name returns the scheme identifier ("ethereum", "sui").
	Name() string

	// Generate creates a fresh wallet.
	Generate() (Wallet, error)

	// WalletFromKey rebuilds the wallet for an encoded private key.
	WalletFromKey(key string) (Wallet, error)

	// Sign signs message as a personal message of the chain.
	Sign(key, message string) (Signed, error)

	// Verify resolves the signer of message. An error means the signature
	// could not be decoded or recovered at all.
	Verify(message, signature string) (Verification, error)
}

// Wallet is a keypair with its chain encodings. Fields a scheme does not
// produce are left empty.
type Wallet struct {
	Address             string
	PrivateKey          string
	PublicKey           string
	CompressedPublicKey string
	Mnemonic            string
	DerivationPath      string
	KeyType             string
}

// Signed is the result of signing a message.
type Signed struct {
	Address   string
	Message   string
	Signature string
}

// Verification is the result of resolving a signature.
type Verification struct {
	Address string
	Valid   bool
}
