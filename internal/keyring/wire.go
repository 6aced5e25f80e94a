//go:build wireinject

package keyring

import (
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github/chapool/hw-keyring/internal/config"
	"github/chapool/hw-keyring/internal/device"
	"github/chapool/hw-keyring/internal/metrics"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// keyringSet groups the providers required for a keyring on top of a device
var keyringSet = wire.NewSet(
	New,
	NewCoinRegistry,
	NewPromptQueue,
	NewAddressService,
	NewPathCache,
	metrics.New,
)

// InitNewKeyring returns a new Keyring for the given device.
// Metrics are registered on reg; pass nil to skip registration.
func InitNewKeyring(
	_ config.Keyring,
	_ device.Service,
	_ mclock.Clock,
	_ prometheus.Registerer,
) (*Keyring, error) {
	wire.Build(keyringSet)
	return new(Keyring), nil
}
