package ds18x

import (
	"fmt"

	"github.com/nerrad567/gray-logic-onewire/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// Deps are the collaborators of the ds18x feature.
type Deps struct {
	Bus        onewire.Bus
	Timers     Timers
	Automation Automation
	Logger     Logger
}

// Feature is a running ds18x feature.
type Feature struct {
	Registry  *Registry
	Scheduler *Scheduler
}

// Init starts the ds18x feature.
//
// It returns (nil, nil) when the feature is disabled or there is no bus.
// Otherwise it turns off the bus's blocking conversion wait, registers the
// ds18x config provider and arms the sampling timer. Failure of either
// registration is returned and nothing is sampled.
func Init(cfg config.DS18xHAConfig, deps Deps) (*Feature, error) {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	if !cfg.Enable {
		logger.Info("ds18x disabled")
		return nil, nil
	}
	if deps.Bus == nil {
		logger.Info("ds18x: no one-wire bus, nothing to do")
		return nil, nil
	}

	deps.Bus.Lock()
	deps.Bus.SetWaitForConversion(false)
	deps.Bus.Unlock()

	registry := NewRegistry(deps.Automation, cfg.NamePrefix)
	registry.SetLogger(logger)

	if err := deps.Automation.RegisterProvider(ProviderName, registry.ApplyBinding); err != nil {
		return nil, fmt.Errorf("registering %s provider: %w", ProviderName, err)
	}

	scheduler := NewScheduler(deps.Bus, deps.Timers, registry, cfg.Period)
	scheduler.SetLogger(logger)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("starting ds18x sampling: %w", err)
	}

	return &Feature{Registry: registry, Scheduler: scheduler}, nil
}
