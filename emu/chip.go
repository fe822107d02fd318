package emu

import (
	"math/rand"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/verify"
)

// Status register bits.
const (
	StatusMACDone       cim.InnerValue = 0x0001
	StatusWeightsLoaded cim.InnerValue = 0x0002
)

// Write enable register and its bits.
const (
	EnableReg        cim.InnerAddress = 0x2C
	EnableWeights    cim.InnerValue   = 0x0001
	EnableActivation cim.InnerValue   = 0x0002
)

// Ports is the inner register map the chip model decodes.
type Ports struct {
	Weight     cim.InnerAddress
	Activation cim.InnerAddress
	Output     cim.InnerAddress
	Status     cim.InnerAddress
}

// DefaultPorts is the register map of the current chip revision.
var DefaultPorts = Ports{
	Weight:     0x30,
	Activation: 0x34,
	Output:     0x38,
	Status:     0x00,
}

// chip models the inner register space of the accelerator and its
// 64x64 array.
type chip struct {
	ports   Ports
	format  output.Format
	latency sim.VTimeInSec
	stall   bool

	noise int32
	rng   *rand.Rand

	regs   map[cim.InnerAddress]cim.InnerValue
	status cim.InnerValue

	weights     [cim.WeightBytes]byte
	weightWords int
	acts        [cim.ActivationBytes]byte
	actWords    int

	computing bool
	doneAt    sim.VTimeInSec
	out       []byte
	outWord   int
	computes  int
}

func (c *chip) reset() {
	c.regs = make(map[cim.InnerAddress]cim.InnerValue)
	c.status = 0
	c.weights = [cim.WeightBytes]byte{}
	c.weightWords = 0
	c.acts = [cim.ActivationBytes]byte{}
	c.actWords = 0
	c.computing = false
	c.out = nil
	c.outWord = 0
}

// advance completes the running computation if its latency has elapsed.
func (c *chip) advance(now sim.VTimeInSec) {
	if !c.computing || c.stall || now < c.doneAt {
		return
	}

	c.computing = false
	c.status |= StatusMACDone
}

func (c *chip) write(now sim.VTimeInSec, addr cim.InnerAddress, value cim.InnerValue) {
	c.advance(now)

	switch addr {
	case c.ports.Status:
		c.status &^= value
	case c.ports.Weight:
		if c.regs[EnableReg]&EnableWeights != 0 {
			c.writeWeight(value)
		}
	case c.ports.Activation:
		if c.regs[EnableReg]&EnableActivation != 0 {
			c.writeActivation(now, value)
		}
	default:
		c.regs[addr] = value
	}
}

func (c *chip) writeWeight(value cim.InnerValue) {
	c.weights[2*c.weightWords] = byte(value >> 8)
	c.weights[2*c.weightWords+1] = byte(value)
	c.weightWords++

	if c.weightWords == cim.WeightBytes/2 {
		c.weightWords = 0
		c.status |= StatusWeightsLoaded
	}
}

func (c *chip) writeActivation(now sim.VTimeInSec, value cim.InnerValue) {
	c.acts[2*c.actWords] = byte(value >> 8)
	c.acts[2*c.actWords+1] = byte(value)
	c.actWords++

	if c.actWords == cim.ActivationBytes/2 {
		c.actWords = 0
		c.startCompute(now)
	}
}

func (c *chip) startCompute(now sim.VTimeInSec) {
	golden, err := verify.ExpectedOutput(c.weights[:], c.acts[:])
	if err != nil {
		panic(err)
	}

	if c.noise > 0 {
		for i := range golden {
			golden[i] += int32(c.rng.Intn(int(2*c.noise+1))) - c.noise
		}
	}

	c.out, err = output.Encode(golden, c.format)
	if err != nil {
		panic(err)
	}

	c.outWord = 0
	c.computing = true
	c.doneAt = now + c.latency
	c.computes++

	cim.Trace("Compute", "Start", float64(now*1e9), "Done", float64(c.doneAt*1e9))
}

func (c *chip) read(now sim.VTimeInSec, addr cim.InnerAddress) cim.InnerValue {
	c.advance(now)

	switch addr {
	case c.ports.Status:
		return c.status
	case c.ports.Output:
		return c.nextOutputWord()
	default:
		return c.regs[addr]
	}
}

func (c *chip) nextOutputWord() cim.InnerValue {
	if len(c.out) == 0 {
		return 0
	}

	words := len(c.out) / 2
	k := c.outWord % words
	c.outWord++

	return uint16(c.out[2*k])<<8 | uint16(c.out[2*k+1])
}
