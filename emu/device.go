// Package emu provides a software model of the FPGA FIFO bridge and the
// compute-in-memory chip behind it. A Device implements cim.Transport so that
// the driver can run complete compute cycles without hardware.
package emu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/frame"
)

// HookPosFrame marks when the bridge executes a frame taken from FIFO-A.
var HookPosFrame = &sim.HookPos{Name: "CIM Frame"}

// HookPosReturn marks when the bridge pushes a word into FIFO-B.
var HookPosReturn = &sim.HookPos{Name: "CIM Return"}

// Errors specific to the emulated bridge.
var (
	ErrFIFOOverflow  = errors.New("return fifo overflow")
	ErrFIFOUnderflow = errors.New("return fifo underflow")
)

type word [frame.Size]byte

// Device is the emulated FPGA bridge with the chip attached.
type Device struct {
	*sim.HookableBase

	name   string
	period sim.VTimeInSec
	now    sim.VTimeInSec
	lock   sync.Mutex

	fifoA     sim.Buffer
	fifoB     sim.Buffer
	threshold int
	echo      bool
	itf       cim.Interface
	resets    int

	// Read latch of the bridge. The high byte is returned first.
	latch      cim.InnerValue
	readFrames []frame.Frame

	// Staging registers of the indirect protocol.
	stagedAddr cim.InnerAddress
	stagedLo   byte
	stagedHi   byte

	chip chip
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// Now returns the current virtual time of the device.
func (d *Device) Now() sim.VTimeInSec {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.now
}

// Sleep advances the virtual time. The device can serve as the driver's
// clock so that polling intervals elapse instantly.
func (d *Device) Sleep(dur time.Duration) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.now += sim.VTimeInSec(dur.Seconds())
}

// Computations returns the number of MAC operations started since the
// device was built.
func (d *Device) Computations() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.chip.computes
}

// Resets returns the number of resets issued to the device.
func (d *Device) Resets() int {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.resets
}

// Interface returns the currently selected chip link.
func (d *Device) Interface() cim.Interface {
	d.lock.Lock()
	defer d.lock.Unlock()

	return d.itf
}

// Register peeks at an inner register without going through the bridge.
func (d *Device) Register(addr cim.InnerAddress) cim.InnerValue {
	d.lock.Lock()
	defer d.lock.Unlock()

	if addr == d.chip.ports.Status {
		return d.chip.status
	}

	return d.chip.regs[addr]
}

// Weights returns a copy of the weight tensor held by the array.
func (d *Device) Weights() []byte {
	d.lock.Lock()
	defer d.lock.Unlock()

	w := make([]byte, cim.WeightBytes)
	copy(w, d.chip.weights[:])

	return w
}

func (d *Device) tick() {
	d.now += d.period
}

// SendFrames pushes a batch of frames into FIFO-A and lets the bridge
// execute them. A batch holding a malformed frame is rejected as a whole.
func (d *Device) SendFrames(data []byte) error {
	if len(data)%frame.Size != 0 {
		return fmt.Errorf("batch of %d bytes: %w", len(data), cim.ErrSizeMismatch)
	}

	frames := make([]frame.Frame, 0, len(data)/frame.Size)
	for i := 0; i < len(data); i += frame.Size {
		f, err := frame.ParseFrame(data[i : i+frame.Size])
		if err != nil {
			return fmt.Errorf("frame %d: %w", i/frame.Size, err)
		}

		frames = append(frames, f)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	for _, f := range frames {
		if !d.fifoA.CanPush() {
			if err := d.drain(); err != nil {
				return err
			}
		}

		d.fifoA.Push(f)
	}

	return d.drain()
}

func (d *Device) drain() error {
	for d.fifoA.Size() > 0 {
		f := d.fifoA.Pop().(frame.Frame)
		d.tick()

		d.InvokeHook(sim.HookCtx{
			Domain: d,
			Pos:    HookPosFrame,
			Item:   f,
		})

		if err := d.execute(f); err != nil {
			d.fifoA.Clear()
			return err
		}
	}

	return nil
}

func (d *Device) execute(f frame.Frame) error {
	if !f.IsWrite() {
		return d.executeRead(f)
	}

	switch f.Outer() {
	case frame.OuterAddr:
		d.stagedAddr = f.Payload()
	case frame.OuterDataLo:
		d.stagedLo = f.Payload()
	case frame.OuterDataHi:
		d.stagedHi = f.Payload()
	case frame.OuterCommit:
		d.commit(f.Payload())
	default:
		cim.Trace("Ignored frame", "Device", d.name, "Frame", f.String())
	}

	return nil
}

func (d *Device) commit(op byte) {
	switch op {
	case frame.CommitWrite:
		value := uint16(d.stagedHi)<<8 | uint16(d.stagedLo)
		d.chip.write(d.now, d.stagedAddr, value)
	case frame.CommitRead:
		d.latch = d.chip.read(d.now, d.stagedAddr)
		d.readFrames = d.readFrames[:0]
	default:
		cim.Trace("Unknown commit", "Device", d.name, "Op", op)
	}
}

func (d *Device) executeRead(f frame.Frame) error {
	var data byte

	switch f.Outer() {
	case frame.OuterResHi:
		data = byte(d.latch >> 8)
	case frame.OuterResLo:
		data = byte(d.latch)
	default:
		return fmt.Errorf("read of outer address %d: %w", f.Outer(), cim.ErrInvalidAddress)
	}

	if err := d.pushReturn(word{data}); err != nil {
		return err
	}

	d.readFrames = append(d.readFrames, f)
	if !d.echo || f.Outer() != frame.OuterResLo {
		return nil
	}

	for _, rf := range d.readFrames {
		if err := d.pushReturn(word(rf)); err != nil {
			return err
		}
	}

	d.readFrames = d.readFrames[:0]

	return nil
}

func (d *Device) pushReturn(w word) error {
	if !d.fifoB.CanPush() {
		return fmt.Errorf("%s: %w", d.name, ErrFIFOOverflow)
	}

	d.fifoB.Push(w)
	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    HookPosReturn,
		Item:   w,
	})

	return nil
}

// ReceiveBytes pops n bytes from FIFO-B. n must be a multiple of the word
// size.
func (d *Device) ReceiveBytes(n int) ([]byte, error) {
	if n < 0 || n%frame.Size != 0 {
		return nil, fmt.Errorf("receive of %d bytes: %w", n, cim.ErrSizeMismatch)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	d.tick()

	words := n / frame.Size
	if d.fifoB.Size() < words {
		return nil, fmt.Errorf("%d words requested, %d available: %w",
			words, d.fifoB.Size(), ErrFIFOUnderflow)
	}

	data := make([]byte, 0, n)
	for i := 0; i < words; i++ {
		w := d.fifoB.Pop().(word)
		data = append(data, w[:]...)
	}

	return data, nil
}

// StatusReady reports whether FIFO-B holds any word.
func (d *Device) StatusReady() (bool, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.tick()

	return d.fifoB.Size() > 0, nil
}

// FullnessReached reports whether FIFO-B reached the programmed level.
func (d *Device) FullnessReached() (bool, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.tick()

	return d.fifoB.Size() >= d.threshold, nil
}

// Reset clears both FIFOs, the bridge staging registers and the chip.
func (d *Device) Reset() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.fifoA.Clear()
	d.fifoB.Clear()
	d.stagedAddr, d.stagedLo, d.stagedHi = 0, 0, 0
	d.latch = 0
	d.readFrames = d.readFrames[:0]
	d.chip.reset()
	d.resets++

	cim.Trace("Reset", "Device", d.name, "Time", float64(d.now*1e9))

	return nil
}

// SelectInterface records the selected link. Both links behave the same in
// the model.
func (d *Device) SelectInterface(itf cim.Interface) error {
	if itf != cim.I2C && itf != cim.SPI {
		return fmt.Errorf("interface %d: %w", itf, cim.ErrInvalidData)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	d.itf = itf

	return nil
}

// ConfigureThreshold sets the FIFO-B level at which FullnessReached turns
// true.
func (d *Device) ConfigureThreshold(words int) error {
	if words <= 0 || words > d.fifoB.Capacity() {
		return fmt.Errorf("threshold of %d words: %w", words, cim.ErrInvalidData)
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	d.threshold = words

	return nil
}
