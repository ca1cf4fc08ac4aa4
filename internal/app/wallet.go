// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/btouchard/keygate/internal/domain"
	"github.com/btouchard/keygate/pkg/crypto"
	applog "github.com/btouchard/keygate/pkg/logger"
)

// WalletService handles the signing and key-management use cases.
// Capability failures come back as *domain.OperationError so the transport
// can map them without inspecting causes.
type WalletService struct {
	schemes  map[domain.Scheme]crypto.Scheme
	activity *ActivityService
	logger   *slog.Logger
}

// NewWalletService creates a WalletService over the given schemes, keyed by
// their Name(). activity may be nil.
func NewWalletService(activity *ActivityService, logger *slog.Logger, schemes ...crypto.Scheme) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[domain.Scheme]crypto.Scheme, len(schemes))
	for _, s := range schemes {
		byName[domain.Scheme(s.Name())] = s
	}
	return &WalletService{
		schemes:  byName,
		activity: activity,
		logger:   logger.With(applog.ComponentKey, "WALLET"),
	}
}

func (s *WalletService) scheme(name domain.Scheme) (crypto.Scheme, error) {
	impl, ok := s.schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScheme, name)
	}
	return impl, nil
}

// Sign signs message with key as a personal message of the scheme.
func (s *WalletService) Sign(ctx context.Context, name domain.Scheme, key, message string) (crypto.Signed, error) {
	impl, err := s.scheme(name)
	if err != nil {
		return crypto.Signed{}, err
	}

	signed, err := impl.Sign(key, message)
	if err != nil {
		return crypto.Signed{}, domain.Fail(domain.ErrSigning, err)
	}

	s.logger.Debug("message signed", "scheme", name, "address", signed.Address, "request_id", RequestIDFrom(ctx))
	s.activity.Record(ctx, domain.OperationSign, name, signed.Address)
	return signed, nil
}

// Verify resolves the signer of message. When expected is non-empty the
// result is valid only if the signer matches it.
func (s *WalletService) Verify(ctx context.Context, name domain.Scheme, message, signature, expected string) (crypto.Verification, error) {
	impl, err := s.scheme(name)
	if err != nil {
		return crypto.Verification{}, err
	}

	v, err := impl.Verify(message, signature)
	if err != nil {
		return crypto.Verification{}, domain.Fail(domain.ErrVerification, err)
	}

	if expected != "" {
		v.Valid = v.Valid && domain.SameAddress(v.Address, expected)
	}

	s.logger.Debug("signature verified",
		"scheme", name,
		"address", v.Address,
		"valid", v.Valid,
		"request_id", RequestIDFrom(ctx),
	)
	s.activity.Record(ctx, domain.OperationVerify, name, v.Address)
	return v, nil
}

// Generate creates a fresh wallet.
func (s *WalletService) Generate(ctx context.Context, name domain.Scheme) (crypto.Wallet, error) {
	impl, err := s.scheme(name)
	if err != nil {
		return crypto.Wallet{}, err
	}

	w, err := impl.Generate()
	if err != nil {
		return crypto.Wallet{}, domain.Fail(domain.ErrWalletGeneration, err)
	}

	s.logger.Debug("wallet generated", "scheme", name, "address", w.Address, "request_id", RequestIDFrom(ctx))
	s.activity.Record(ctx, domain.OperationGenerate, name, w.Address)
	return w, nil
}

// FromPrivateKey rebuilds the wallet for an already normalized private key.
func (s *WalletService) FromPrivateKey(ctx context.Context, name domain.Scheme, key string) (crypto.Wallet, error) {
	impl, err := s.scheme(name)
	if err != nil {
		return crypto.Wallet{}, err
	}

	w, err := impl.WalletFromKey(key)
	if err != nil {
		return crypto.Wallet{}, domain.Fail(domain.ErrKeyConversion, err)
	}

	s.logger.Debug("wallet imported", "scheme", name, "address", w.Address, "request_id", RequestIDFrom(ctx))
	s.activity.Record(ctx, domain.OperationImport, name, w.Address)
	return w, nil
}
