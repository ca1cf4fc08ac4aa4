// SPDX-License-Identifier: AGPL-3.0-or-later

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scheme identifies one of the supported key schemes.
type Scheme string

const (
	SchemeEthereum Scheme = "ethereum"
	SchemeSui      Scheme = "sui"
)

// Valid returns true if the scheme is a known value.
func (s Scheme) Valid() bool {
	switch s {
	case SchemeEthereum, SchemeSui:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Scheme) String() string {
	return string(s)
}

// Operation is the kind of work recorded in the activity journal.
type Operation string

const (
	OperationSign     Operation = "sign"
	OperationVerify   Operation = "verify"
	OperationGenerate Operation = "generate"
	OperationImport   Operation = "import"
)

// Activity is one journal entry. It carries public data only:
// never a private key, mnemonic, message or signature.
type Activity struct {
	ID        uuid.UUID
	Operation Operation
	Scheme    Scheme
	Address   string
	RequestID string
	CreatedAt time.Time
}

// NewActivity creates a journal entry stamped with a fresh ID and the current time.
func NewActivity(op Operation, scheme Scheme, address, requestID string) (*Activity, error) {
	if !scheme.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
	}
	return &Activity{
		ID:        uuid.New(),
		Operation: op,
		Scheme:    scheme,
		Address:   address,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}, nil
}
