// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api holds the JSON shapes exchanged with keygate clients.
package api

import "time"

// Envelope wraps every successful response. Error is only set when decoding
// a failure on the client side.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse is the uniform failure body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewError builds a failure body.
func NewError(message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message}
}

// SignResponse is returned by /sign and /sui-sign.
type SignResponse struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// VerifyResponse is returned by /verify and /sui-verify.
type VerifyResponse struct {
	RecoveredAddress string `json:"recoveredAddress"`
	Message          string `json:"message"`
	IsValid          bool   `json:"isValid"`
}

// EthereumWallet is returned by /generate-eth.
type EthereumWallet struct {
	Address        string `json:"address"`
	PrivateKey     string `json:"privateKey"`
	Mnemonic       string `json:"mnemonic"`
	PublicKey      string `json:"publicKey"`
	DerivationPath string `json:"derivationPath"`
}

// EthereumKeyWallet is returned by /eth-key-to-wallet.
type EthereumKeyWallet struct {
	Address             string `json:"address"`
	PrivateKey          string `json:"privateKey"`
	PublicKey           string `json:"publicKey"`
	CompressedPublicKey string `json:"compressedPublicKey"`
}

// SuiWallet is returned by /generate-sui.
type SuiWallet struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
	KeyType    string `json:"keyType"`
}

// SuiKeyAddress is returned by /sui-key-to-address.
type SuiKeyAddress struct {
	Address    string `json:"address"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
	KeyType    string `json:"keyType"`
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Activity is one journal entry returned by the admin listing.
type Activity struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Scheme    string    `json:"scheme"`
	Address   string    `json:"address"`
	RequestID string    `json:"requestId"`
	CreatedAt time.Time `json:"createdAt"`
}
