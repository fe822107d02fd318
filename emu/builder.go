package emu

import (
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/output"
)

// Builder can build emulated devices.
type Builder struct {
	freq       sim.Freq
	latency    int
	fifoADepth int
	fifoBDepth int
	ports      Ports
	format     output.Format
	echo       bool
	stall      bool
	noise      int32
	seed       int64
}

// MakeBuilder creates a builder with the default parameters of the bench
// setup.
func MakeBuilder() Builder {
	return Builder{
		freq:       100 * sim.MHz,
		latency:    1000,
		fifoADepth: 1024,
		fifoBDepth: 1024,
		ports:      DefaultPorts,
		format:     output.Packed(output.MaxPrecision),
		seed:       1,
	}
}

// WithFreq sets the clock frequency of the device.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithComputeLatency sets the number of cycles a MAC operation takes.
func (b Builder) WithComputeLatency(cycles int) Builder {
	b.latency = cycles
	return b
}

// WithFIFODepth sets the depth, in 32-bit words, of FIFO-A and FIFO-B.
func (b Builder) WithFIFODepth(fifoA, fifoB int) Builder {
	b.fifoADepth = fifoA
	b.fifoBDepth = fifoB
	return b
}

// WithPorts sets the inner register map.
func (b Builder) WithPorts(ports Ports) Builder {
	b.ports = ports
	return b
}

// WithOutputFormat sets the layout of the output block the chip produces.
func (b Builder) WithOutputFormat(f output.Format) Builder {
	b.format = f
	return b
}

// WithEcho makes the bridge append the two read-request frames after the
// result of every indirect read.
func (b Builder) WithEcho(echo bool) Builder {
	b.echo = echo
	return b
}

// WithStall makes the MAC operation never complete.
func (b Builder) WithStall(stall bool) Builder {
	b.stall = stall
	return b
}

// WithNoise perturbs every lane by a uniform error in [-amplitude,
// amplitude] before the output is encoded.
func (b Builder) WithNoise(amplitude int32, seed int64) Builder {
	b.noise = amplitude
	b.seed = seed
	return b
}

// Build creates a device.
func (b Builder) Build(name string) *Device {
	if err := b.format.Validate(); err != nil {
		panic(err)
	}

	if b.freq <= 0 {
		panic("frequency must be positive")
	}

	d := &Device{
		HookableBase: sim.NewHookableBase(),
		name:         name,
		period:       sim.VTimeInSec(1 / float64(b.freq)),
		fifoA:        sim.NewBuffer(name+".FIFOA", b.fifoADepth),
		fifoB:        sim.NewBuffer(name+".FIFOB", b.fifoBDepth),
		threshold:    cim.OutputReads * 2,
		echo:         b.echo,
		itf:          cim.I2C,
	}

	d.chip = chip{
		ports:   b.ports,
		format:  b.format,
		latency: sim.VTimeInSec(float64(b.latency) / float64(b.freq)),
		stall:   b.stall,
		noise:   b.noise,
		rng:     rand.New(rand.NewSource(b.seed)),
	}
	d.chip.reset()

	return d
}
