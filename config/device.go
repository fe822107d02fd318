package config

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cimhost/emu"
)

// DeviceBuilder can build emulated devices that match a Config.
type DeviceBuilder struct {
	freq    sim.Freq
	latency int
	config  *Config
	noise   int32
	seed    int64
}

// WithFreq sets the frequency of the device.
func (d DeviceBuilder) WithFreq(freq sim.Freq) DeviceBuilder {
	d.freq = freq
	return d
}

// WithComputeLatency sets the number of cycles of a MAC operation.
func (d DeviceBuilder) WithComputeLatency(cycles int) DeviceBuilder {
	d.latency = cycles
	return d
}

// WithConfig sets the configuration the device must honor.
func (d DeviceBuilder) WithConfig(c *Config) DeviceBuilder {
	d.config = c
	return d
}

// WithNoise perturbs the analog result of every lane.
func (d DeviceBuilder) WithNoise(amplitude int32, seed int64) DeviceBuilder {
	d.noise = amplitude
	d.seed = seed
	return d
}

// Build creates an emulated device.
func (d DeviceBuilder) Build(name string) *emu.Device {
	c := d.config
	if c == nil {
		c = Default()
	}

	b := emu.MakeBuilder().
		WithPorts(emu.Ports{
			Weight:     c.Ports.Weight,
			Activation: c.Ports.Activation,
			Output:     c.Ports.Output,
			Status:     c.Ports.Status,
		}).
		WithOutputFormat(c.Output).
		WithEcho(c.ResponseSize == 16).
		WithNoise(d.noise, d.seed)

	if d.freq > 0 {
		b = b.WithFreq(d.freq)
	}

	if d.latency > 0 {
		b = b.WithComputeLatency(d.latency)
	}

	return b.Build(name)
}
