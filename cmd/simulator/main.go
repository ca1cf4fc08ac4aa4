// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	applog "github.com/btouchard/keygate/pkg/logger"
	keygate "github.com/btouchard/keygate/sdk/golang"
)

func main() {
	serverURL := getEnv("KEYGATE_URL", "http://localhost:3000")
	interval := getEnvDuration("KEYGATE_SIM_INTERVAL", 2*time.Second)

	logger := applog.New(os.Stdout, slog.LevelInfo, applog.FormatColor).With(applog.ComponentKey, "SIMULATOR")

	client, err := keygate.New(keygate.Config{ServerURL: serverURL})
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting simulator", "server", serverURL, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var rounds, failures int
	for {
		rounds++
		if err := ethereumRound(ctx, client, logger); err != nil {
			failures++
			logger.Error("ethereum round failed", "round", rounds, "error", err)
		}
		if err := suiRound(ctx, client, logger); err != nil {
			failures++
			logger.Error("sui round failed", "round", rounds, "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("simulator stopped", "rounds", rounds, "failures", failures)
			return
		case <-ticker.C:
		}
	}
}

// ethereumRound generates a wallet, signs a random message and checks the
// recovered signer.
func ethereumRound(ctx context.Context, c *keygate.Client, logger *slog.Logger) error {
	w, err := c.GenerateEthereum(ctx)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	message := fmt.Sprintf("keygate simulation %d", rand.Int63())
	sig, err := c.Sign(ctx, w.PrivateKey, message)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	v, err := c.VerifyFrom(ctx, sig.Signature, message, w.Address)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !v.IsValid || v.RecoveredAddress != w.Address {
		return fmt.Errorf("recovered %s, want %s", v.RecoveredAddress, w.Address)
	}

	logger.Info("ethereum round ok", "address", w.Address, "derivation", w.DerivationPath)
	return nil
}

// suiRound generates a wallet, rebuilds it from its key and runs a
// sign/verify cycle.
func suiRound(ctx context.Context, c *keygate.Client, logger *slog.Logger) error {
	w, err := c.GenerateSui(ctx)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	again, err := c.SuiKeyToAddress(ctx, w.PrivateKey)
	if err != nil {
		return fmt.Errorf("key to address: %w", err)
	}
	if again.Address != w.Address {
		return fmt.Errorf("derived %s, want %s", again.Address, w.Address)
	}

	message := fmt.Sprintf("keygate simulation %d", rand.Int63())
	sig, err := c.SuiSign(ctx, w.PrivateKey, message)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	v, err := c.SuiVerify(ctx, sig.Signature, message)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !v.IsValid || v.RecoveredAddress != w.Address {
		return fmt.Errorf("verification failed for %s", w.Address)
	}

	logger.Info("sui round ok", "address", w.Address)
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}
