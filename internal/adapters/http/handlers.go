// SPDX-License-Identifier: AGPL-3.0-or-later

// Package http exposes the wallet and journal use cases over HTTP.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/btouchard/keygate/internal/app"
	"github.com/btouchard/keygate/internal/domain"
	"github.com/btouchard/keygate/pkg/api"
)

// Handlers holds the endpoint operations and their dependencies.
type Handlers struct {
	wallets  *app.WalletService
	activity *app.ActivityService
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers with the given services.
func NewHandlers(wallets *app.WalletService, activity *app.ActivityService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		wallets:  wallets,
		activity: activity,
		logger:   logger,
	}
}

// Endpoints returns the public routes with their parameter schemas.
func (h *Handlers) Endpoints() []Endpoint {
	return []Endpoint{
		{
			Path:   "/sign",
			Params: []Param{required("key"), required("message")},
			Handle: h.Sign,
			class:  rateCrypto,
		},
		{
			Path: "/verify",
			Params: []Param{
				required("signature"),
				required("message"),
				{Name: "address", Normalize: domain.NormalizeAddress},
			},
			Handle: h.Verify,
			class:  rateCrypto,
		},
		{
			Path:   "/generate-eth",
			Handle: h.GenerateEthereum,
			class:  rateGenerate,
		},
		{
			Path:   "/generate-sui",
			Handle: h.GenerateSui,
			class:  rateGenerate,
		},
		{
			Path:   "/eth-key-to-wallet",
			Params: []Param{{Name: "privateKey", Required: true, Normalize: domain.NormalizeEthereumKey}},
			Handle: h.EthereumKeyToWallet,
			class:  rateCrypto,
		},
		{
			Path:   "/sui-key-to-address",
			Params: []Param{{Name: "privateKey", Required: true, Normalize: domain.NormalizeSuiKey}},
			Handle: h.SuiKeyToAddress,
			class:  rateCrypto,
		},
		{
			Path: "/sui-sign",
			Params: []Param{
				{Name: "key", Required: true, Normalize: domain.NormalizeSuiKey},
				required("message"),
			},
			Handle: h.SuiSign,
			class:  rateCrypto,
		},
		{
			Path: "/sui-verify",
			Params: []Param{
				required("signature"),
				required("message"),
				{Name: "address", Normalize: domain.NormalizeAddress},
			},
			Handle: h.SuiVerify,
			class:  rateCrypto,
		},
		{
			Path:   "/health",
			Handle: h.Health,
		},
	}
}

// AdminEndpoint returns the activity listing route.
func (h *Handlers) AdminEndpoint() Endpoint {
	return Endpoint{
		Path:   "/api/v1/admin/activity",
		Params: []Param{{Name: "limit", Normalize: normalizeLimit}},
		Handle: h.ListActivity,
	}
}

// Sign handles /sign.
func (h *Handlers) Sign(ctx context.Context, p Values) (any, error) {
	return h.sign(ctx, domain.SchemeEthereum, p)
}

// SuiSign handles /sui-sign.
func (h *Handlers) SuiSign(ctx context.Context, p Values) (any, error) {
	return h.sign(ctx, domain.SchemeSui, p)
}

func (h *Handlers) sign(ctx context.Context, scheme domain.Scheme, p Values) (any, error) {
	signed, err := h.wallets.Sign(ctx, scheme, p.Get("key"), p.Get("message"))
	if err != nil {
		return nil, err
	}
	return api.SignResponse{
		Address:   signed.Address,
		Message:   signed.Message,
		Signature: signed.Signature,
	}, nil
}

// Verify handles /verify.
func (h *Handlers) Verify(ctx context.Context, p Values) (any, error) {
	return h.verify(ctx, domain.SchemeEthereum, p)
}

// SuiVerify handles /sui-verify.
func (h *Handlers) SuiVerify(ctx context.Context, p Values) (any, error) {
	return h.verify(ctx, domain.SchemeSui, p)
}

func (h *Handlers) verify(ctx context.Context, scheme domain.Scheme, p Values) (any, error) {
	message := p.Get("message")
	v, err := h.wallets.Verify(ctx, scheme, message, p.Get("signature"), p.Get("address"))
	if err != nil {
		return nil, err
	}
	return api.VerifyResponse{
		RecoveredAddress: v.Address,
		Message:          message,
		IsValid:          v.Valid,
	}, nil
}

// GenerateEthereum handles /generate-eth.
func (h *Handlers) GenerateEthereum(ctx context.Context, _ Values) (any, error) {
	w, err := h.wallets.Generate(ctx, domain.SchemeEthereum)
	if err != nil {
		return nil, err
	}
	return api.EthereumWallet{
		Address:        w.Address,
		PrivateKey:     w.PrivateKey,
		Mnemonic:       w.Mnemonic,
		PublicKey:      w.PublicKey,
		DerivationPath: w.DerivationPath,
	}, nil
}

// GenerateSui handles /generate-sui.
func (h *Handlers) GenerateSui(ctx context.Context, _ Values) (any, error) {
	w, err := h.wallets.Generate(ctx, domain.SchemeSui)
	if err != nil {
		return nil, err
	}
	return api.SuiWallet{
		Address:    w.Address,
		PrivateKey: w.PrivateKey,
		PublicKey:  w.PublicKey,
		KeyType:    w.KeyType,
	}, nil
}

// EthereumKeyToWallet handles /eth-key-to-wallet.
func (h *Handlers) EthereumKeyToWallet(ctx context.Context, p Values) (any, error) {
	w, err := h.wallets.FromPrivateKey(ctx, domain.SchemeEthereum, p.Get("privateKey"))
	if err != nil {
		return nil, err
	}
	return api.EthereumKeyWallet{
		Address:             w.Address,
		PrivateKey:          w.PrivateKey,
		PublicKey:           w.PublicKey,
		CompressedPublicKey: w.CompressedPublicKey,
	}, nil
}

// SuiKeyToAddress handles /sui-key-to-address.
func (h *Handlers) SuiKeyToAddress(ctx context.Context, p Values) (any, error) {
	w, err := h.wallets.FromPrivateKey(ctx, domain.SchemeSui, p.Get("privateKey"))
	if err != nil {
		return nil, err
	}
	return api.SuiKeyAddress{
		Address:    w.Address,
		PublicKey:  w.PublicKey,
		PrivateKey: w.PrivateKey,
		KeyType:    w.KeyType,
	}, nil
}

// Health handles /health.
func (h *Handlers) Health(context.Context, Values) (any, error) {
	return api.HealthResponse{Status: "ok"}, nil
}

// ListActivity handles /api/v1/admin/activity.
func (h *Handlers) ListActivity(ctx context.Context, p Values) (any, error) {
	limit := app.DefaultActivityLimit
	if raw := p.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	activities, err := h.activity.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	out := make([]api.Activity, 0, len(activities))
	for _, a := range activities {
		out = append(out, api.Activity{
			ID:        a.ID.String(),
			Operation: string(a.Operation),
			Scheme:    a.Scheme.String(),
			Address:   a.Address,
			RequestID: a.RequestID,
			CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}

func normalizeLimit(param, raw string) (string, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > app.MaxActivityLimit {
		return "", domain.Invalid(param, fmt.Sprintf("must be an integer between 1 and %d", app.MaxActivityLimit))
	}
	return strconv.Itoa(n), nil
}
