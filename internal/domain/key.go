// SPDX-License-Identifier: AGPL-3.0-or-later

package domain

import (
	"fmt"
	"strings"
)

const (
	// EthereumKeyLength is the length of a normalized secp256k1 key: "0x" + 64 hex chars.
	EthereumKeyLength = 66
	// SuiKeyLength is the length of a raw Ed25519 seed in hex.
	SuiKeyLength = 64
	// AddressLength is the length of a 0x-prefixed Ethereum address.
	AddressLength = 42
)

// NormalizeEthereumKey prefixes the key with 0x when absent and checks its shape.
func NormalizeEthereumKey(param, raw string) (string, error) {
	key := raw
	if !hasHexPrefix(key) {
		key = "0x" + key
	}
	if len(key) != EthereumKeyLength {
		return "", Invalid(param, fmt.Sprintf("expected %d characters including 0x prefix, got %d", EthereumKeyLength, len(key)))
	}
	if !isHex(key[2:]) {
		return "", Invalid(param, "must be hexadecimal")
	}
	return key, nil
}

// NormalizeSuiKey strips an optional 0x prefix and checks for exactly 64 hex chars.
func NormalizeSuiKey(param, raw string) (string, error) {
	key := raw
	if hasHexPrefix(key) {
		key = key[2:]
	}
	if len(key) != SuiKeyLength {
		return "", Invalid(param, fmt.Sprintf("expected %d hex characters, got %d", SuiKeyLength, len(key)))
	}
	if !isHex(key) {
		return "", Invalid(param, "must be hexadecimal")
	}
	return key, nil
}

// NormalizeAddress checks a 0x-prefixed 20-byte (Ethereum) or 32-byte (Sui) hex address.
func NormalizeAddress(param, raw string) (string, error) {
	if !hasHexPrefix(raw) {
		return "", Invalid(param, "must start with 0x")
	}
	body := raw[2:]
	if len(body) != 40 && len(body) != 64 {
		return "", Invalid(param, fmt.Sprintf("expected 40 or 64 hex characters, got %d", len(body)))
	}
	if !isHex(body) {
		return "", Invalid(param, "must be hexadecimal")
	}
	return raw, nil
}

// SameAddress compares two hex addresses ignoring EIP-55 casing.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

func hasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
