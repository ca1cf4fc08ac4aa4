// SPDX-License-Identifier: MIT

package golang

import (
	"encoding/json"
	"time"
)

// envelope is the uniform response body.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Signature is returned by Sign and SuiSign.
type Signature struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// Verification is returned by Verify and SuiVerify.
type Verification struct {
	RecoveredAddress string `json:"recoveredAddress"`
	Message          string `json:"message"`
	IsValid          bool   `json:"isValid"`
}

// EthereumWallet is returned by GenerateEthereum.
type EthereumWallet struct {
	Address        string `json:"address"`
	PrivateKey     string `json:"privateKey"`
	Mnemonic       string `json:"mnemonic"`
	PublicKey      string `json:"publicKey"`
	DerivationPath string `json:"derivationPath"`
}

// EthereumKeyWallet is returned by EthereumKeyToWallet.
type EthereumKeyWallet struct {
	Address             string `json:"address"`
	PrivateKey          string `json:"privateKey"`
	PublicKey           string `json:"publicKey"`
	CompressedPublicKey string `json:"compressedPublicKey"`
}

// SuiWallet is returned by GenerateSui and SuiKeyToAddress.
type SuiWallet struct {
	Address    string `json:"address"`
	PrivateKey string `json:"privateKey"`
	PublicKey  string `json:"publicKey"`
	KeyType    string `json:"keyType"`
}

// Activity is one entry of the server's activity journal.
type Activity struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Scheme    string    `json:"scheme"`
	Address   string    `json:"address"`
	RequestID string    `json:"requestId"`
	CreatedAt time.Time `json:"createdAt"`
}
