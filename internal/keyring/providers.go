package keyring

import (
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/pkg/errors"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/keyring/address"
	"github/chapool/hw-keyring/internal/keyring/coin"
	"github/chapool/hw-keyring/internal/keyring/pathcache"
	"github/chapool/hw-keyring/internal/keyring/prompt"
	"github/chapool/hw-keyring/internal/metrics"
)

// NewCoinRegistry returns the built-in coin table, extended from the configured TOML file
func NewCoinRegistry(cfg config.Keyring) (*coin.Registry, error) {
	registry := coin.NewRegistry()
	if cfg.CoinTablePath == "" {
		return registry, nil
	}

	if err := registry.LoadFile(cfg.CoinTablePath); err != nil {
		return nil, errors.Wrap(err, "failed to load coin table")
	}
	return registry, nil
}

// NewPromptQueue returns the process wide prompt serializer
func NewPromptQueue(cfg config.Keyring, clock mclock.Clock, m *metrics.Metrics) *prompt.Queue {
	return prompt.NewQueue(clock, cfg.PromptCooldown, m)
}

// NewAddressService returns the address deriver
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewAddressService(cfg config.Keyring, dev device.Service, prompts *prompt.Queue, m *metrics.Metrics) address.Service {
	return address.NewService(dev, prompts, m, address.Options{LocalDerivation: cfg.LocalDerivation})
}

// NewPathCache returns the address cache
func NewPathCache(cfg config.Keyring, deriver address.Service, m *metrics.Metrics) *pathcache.Cache {
	return pathcache.New(deriver, cfg.MaxIndex, m)
}
