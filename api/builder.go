package api

import (
	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/config"
	"github.com/sarchlab/cimhost/tensor"
)

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	transport cim.Transport
	clock     Clock
	config    *config.Config
}

// WithTransport sets the transport the driver owns.
func (b DriverBuilder) WithTransport(t cim.Transport) DriverBuilder {
	b.transport = t
	return b
}

// WithClock sets the clock used between two polls. The wall clock is used by
// default.
func (b DriverBuilder) WithClock(clock Clock) DriverBuilder {
	b.clock = clock
	return b
}

// WithConfig sets the device configuration. The default configuration is
// used when none is given.
func (b DriverBuilder) WithConfig(c *config.Config) DriverBuilder {
	b.config = c
	return b
}

// Build creates a driver.
func (b DriverBuilder) Build(name string) Driver {
	if b.transport == nil {
		panic("driver requires a transport")
	}

	c := b.config
	if c == nil {
		c = config.Default()
	}

	if err := c.Validate(); err != nil {
		panic(err)
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	return &driverImpl{
		name:      name,
		transport: b.transport,
		clock:     clock,
		config:    c.Clone(),
		quantizer: tensor.Quantizer{Correction: c.Correction},
		state:     StateReset,
	}
}
