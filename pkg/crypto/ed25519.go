// SPDX-License-Identifier: AGPL-3.0-or-later

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	ed25519KeyType = "Ed25519"

	// Sui signature scheme flag for Ed25519.
	suiEd25519Flag byte = 0x00

	// flag || signature || public key
	suiSignatureLength = 1 + ed25519.SignatureSize + ed25519.PublicKeySize
)

// Intent prefix of a Sui personal message: scope PersonalMessage, version V0, app Sui.
var personalMessageIntent = []byte{3, 0, 0}

// Sui implements Scheme for Ed25519 keypairs on the Sui chain.
type Sui struct{}

// NewSui creates the Sui scheme.
func NewSui() *Sui {
	return &Sui{}
}

// Name returns "sui".
func (s *Sui) Name() string {
	return "sui"
}

// Generate creates a fresh Ed25519 keypair.
func (s *Sui) Generate() (Wallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Wallet{}, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return suiWallet(priv), nil
}

// WalletFromKey builds the keypair from a 32-byte seed in hex, with or without 0x.
func (s *Sui) WalletFromKey(key string) (Wallet, error) {
	priv, err := parseEd25519Seed(key)
	if err != nil {
		return Wallet{}, err
	}
	return suiWallet(priv), nil
}

// Sign signs message as a Sui personal message and returns the serialized
// signature base64(flag || signature || public key).
func (s *Sui) Sign(key, message string) (Signed, error) {
	priv, err := parseEd25519Seed(key)
	if err != nil {
		return Signed{}, err
	}
	pub := priv.Public().(ed25519.PublicKey)

	digest := personalMessageDigest([]byte(message))
	sig := ed25519.Sign(priv, digest[:])

	serialized := make([]byte, 0, suiSignatureLength)
	serialized = append(serialized, suiEd25519Flag)
	serialized = append(serialized, sig...)
	serialized = append(serialized, pub...)

	return Signed{
		Address:   SuiAddress(pub),
		Message:   message,
		Signature: base64.StdEncoding.EncodeToString(serialized),
	}, nil
}

// Verify checks a serialized Sui signature. The signer is known from the
// embedded public key, so a signature that does not match yields Valid=false.
func (s *Sui) Verify(message, signature string) (Verification, error) {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(raw) != suiSignatureLength {
		return Verification{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, suiSignatureLength, len(raw))
	}
	if raw[0] != suiEd25519Flag {
		return Verification{}, fmt.Errorf("%w: unsupported scheme flag 0x%02x", ErrMalformedSignature, raw[0])
	}

	sig := raw[1 : 1+ed25519.SignatureSize]
	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	digest := personalMessageDigest([]byte(message))

	return Verification{
		Address: SuiAddress(pub),
		Valid:   ed25519.Verify(pub, digest[:], sig),
	}, nil
}

// SuiAddress returns 0x + hex(blake2b-256(flag || public key)).
func SuiAddress(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, suiEd25519Flag)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

func suiWallet(priv ed25519.PrivateKey) Wallet {
	pub := priv.Public().(ed25519.PublicKey)
	return Wallet{
		Address:    SuiAddress(pub),
		PrivateKey: hex.EncodeToString(priv.Seed()),
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		KeyType:    ed25519KeyType,
	}
}

func parseEd25519Seed(key string) (ed25519.PrivateKey, error) {
	if has0x(key) {
		key = key[2:]
	}
	seed, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedKey, ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// personalMessageDigest hashes intent || BCS(vector<u8>) of msg.
func personalMessageDigest(msg []byte) [blake2b.Size256]byte {
	buf := make([]byte, 0, len(personalMessageIntent)+binary.MaxVarintLen64+len(msg))
	buf = append(buf, personalMessageIntent...)
	// BCS length prefixes are ULEB128, the same encoding as Uvarint.
	buf = binary.AppendUvarint(buf, uint64(len(msg)))
	buf = append(buf, msg...)
	return blake2b.Sum256(buf)
}
