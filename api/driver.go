// Package api defines the driver API of the compute-in-memory accelerator.
//
// A Driver owns one cim.Transport and walks the device through the compute
// cycle: reset and configuration, weight load, activation load, compute
// wait, output readout and decode. Every wait on the device is a bounded
// poll; an exhausted budget is reported as cim.ErrDeviceTimeout.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/config"
	"github.com/sarchlab/cimhost/frame"
	"github.com/sarchlab/cimhost/metrics"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/tensor"
)

// ActivationFlag is the status bit the chip raises when a MAC operation on
// the latest activations completes.
const ActivationFlag cim.InnerValue = 0x0001

// ErrNoWeights is returned when a cycle asks to reuse weights but none were
// loaded since the last reset.
var ErrNoWeights = errors.New("no weights loaded")

// Clock pauses the caller between two polls.
type Clock interface {
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// CycleResult is the outcome of one compute cycle.
type CycleResult struct {
	// Raw is the output block as read from the device.
	Raw []byte

	// Output is the decoded device result, in the units of the activations
	// that were sent.
	Output output.Vector

	// Factor is the activation scale factor. It is 1 for unscaled cycles.
	Factor int

	// Polls is the number of status polls spent waiting for the compute.
	Polls int
}

// ScaledResult is the outcome of a cycle run on quantized activations.
type ScaledResult struct {
	CycleResult

	// Activations are the nibbles actually sent to the device.
	Activations []uint8

	// Rescaled is the device output divided by the scale factor.
	Rescaled []float64
}

// Driver provides the interface to control an accelerator.
type Driver interface {
	// Init resets the device, selects the chip link, programs the return
	// FIFO threshold and replays the configured init writes.
	Init(ctx context.Context) error

	// RunCycle loads the weights and activations, waits for the compute and
	// reads the output. Nil weights reuse the weights loaded by a previous
	// cycle.
	RunCycle(ctx context.Context, weights, acts []byte) (CycleResult, error)

	// RunScaledCycle quantizes the activation nibbles, runs a cycle and
	// rescales the output back to the units of the input.
	RunScaledCycle(ctx context.Context, weights []byte, nibbles []uint8) (ScaledResult, error)

	// WriteRegister performs one indirect register write.
	WriteRegister(ctx context.Context, addr cim.InnerAddress, value cim.InnerValue) error

	// ReadRegister performs one indirect register read.
	ReadRegister(ctx context.Context, addr cim.InnerAddress) (cim.InnerValue, error)

	// ReadRegisters reads several registers in one batch. Results are in
	// the order of addrs.
	ReadRegisters(ctx context.Context, addrs []cim.InnerAddress) ([]cim.InnerValue, error)

	// ClearActivationFlag clears the activation-done status bit.
	ClearActivationFlag(ctx context.Context) error

	// State returns the current lifecycle state.
	State() State
}

type driverImpl struct {
	name      string
	transport cim.Transport
	clock     Clock
	config    *config.Config
	quantizer tensor.Quantizer

	state         State
	weightsLoaded bool
	threshold     int
}

// State returns the current lifecycle state.
func (d *driverImpl) State() State {
	return d.state
}

func (d *driverImpl) setState(s State) {
	cim.Trace("State", "Driver", d.name, "From", d.state.String(), "To", s.String())
	d.state = s
}

// fail drops the driver back to the reset state. The device must be
// re-initialized after any transport failure.
func (d *driverImpl) fail(stage string, err error) error {
	slog.Warn("Cycle failed",
		"Driver", d.name,
		"Stage", stage,
		"State", d.state.String(),
		"Error", err,
	)

	d.state = StateReset
	d.weightsLoaded = false

	return err
}

// Init resets the device and brings it to the configured state.
func (d *driverImpl) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	itf, err := d.config.Link()
	if err != nil {
		return err
	}

	txns := make([]frame.Transaction, 0, len(d.config.InitWrites))
	for _, w := range d.config.InitWrites {
		txns = append(txns, frame.BuildWrite(w.Addr, w.Value))
	}

	d.state = StateReset
	d.weightsLoaded = false

	if err := d.transport.Reset(); err != nil {
		return d.fail("reset", fmt.Errorf("reset: %w", err))
	}

	if err := d.transport.SelectInterface(itf); err != nil {
		return d.fail("reset", fmt.Errorf("select interface %s: %w", itf.Name(), err))
	}

	d.threshold = 0
	if err := d.setThreshold(d.config.FullnessThreshold); err != nil {
		return d.fail("reset", err)
	}

	if len(txns) > 0 {
		if err := d.send("init", txns); err != nil {
			return d.fail("init", err)
		}
	}

	d.setState(StateConfigured)

	return nil
}

func (d *driverImpl) ensureConfigured(ctx context.Context) error {
	if d.state != StateReset {
		return nil
	}

	return d.Init(ctx)
}

func (d *driverImpl) setThreshold(words int) error {
	if words == d.threshold {
		return nil
	}

	if err := d.transport.ConfigureThreshold(words); err != nil {
		return fmt.Errorf("configure threshold of %d words: %w", words, err)
	}

	d.threshold = words

	return nil
}

// send transmits transactions as one contiguous batch.
func (d *driverImpl) send(stage string, txns []frame.Transaction) error {
	data := frame.Concat(txns)

	if err := d.transport.SendFrames(data); err != nil {
		return fmt.Errorf("%s: send %d transactions: %w", stage, len(txns), err)
	}

	metrics.CimTransactionsTotal.WithLabelValues(stage).Add(float64(len(txns)))
	metrics.CimBytesSentTotal.Add(float64(len(data)))

	return nil
}

func (d *driverImpl) receive(stage string, n int) ([]byte, error) {
	data, err := d.transport.ReceiveBytes(n)
	if err != nil {
		return nil, fmt.Errorf("%s: receive %d bytes: %w", stage, n, err)
	}

	if len(data) != n {
		return nil, fmt.Errorf("%s: received %d bytes, want %d: %w",
			stage, len(data), n, cim.ErrSizeMismatch)
	}

	metrics.CimBytesReceivedTotal.Add(float64(n))

	return data, nil
}

// poll calls ready until it reports true, at most MaxPolls times, sleeping
// PollInterval between two calls. It returns the number of calls made.
func (d *driverImpl) poll(
	ctx context.Context,
	stage string,
	ready func() (bool, error),
) (int, error) {
	for i := 1; i <= d.config.MaxPolls; i++ {
		metrics.CimPollsTotal.WithLabelValues(stage).Inc()

		ok, err := ready()
		if err != nil {
			return i, fmt.Errorf("%s: %w", stage, err)
		}

		if ok {
			return i, nil
		}

		if i == d.config.MaxPolls {
			break
		}

		if err := ctx.Err(); err != nil {
			return i, err
		}

		d.clock.Sleep(d.config.PollInterval)
	}

	metrics.CimTimeoutsTotal.WithLabelValues(stage).Inc()

	return d.config.MaxPolls, fmt.Errorf("%s: no response after %d polls: %w",
		stage, d.config.MaxPolls, cim.ErrDeviceTimeout)
}

// readBatch sends one read transaction per address and pulls the responses
// once the return FIFO holds them all. A single read waits on the status
// signal; a batch waits on the fullness signal, with the threshold set to
// the size of the batch.
func (d *driverImpl) readBatch(
	ctx context.Context,
	stage string,
	addrs []cim.InnerAddress,
) ([]cim.InnerValue, error) {
	size := d.config.ResponseSize

	txns := make([]frame.Transaction, len(addrs))
	for i, addr := range addrs {
		txns[i] = frame.BuildRead(addr)
	}

	ready := d.transport.StatusReady
	if len(addrs) > 1 {
		ready = d.transport.FullnessReached
		if err := d.setThreshold(len(addrs) * size / frame.Size); err != nil {
			return nil, fmt.Errorf("%s: %w", stage, err)
		}
	}

	if err := d.send(stage, txns); err != nil {
		return nil, err
	}

	if _, err := d.poll(ctx, stage, ready); err != nil {
		return nil, err
	}

	data, err := d.receive(stage, len(addrs)*size)
	if err != nil {
		return nil, err
	}

	values := make([]cim.InnerValue, len(addrs))
	for i := range values {
		v, err := frame.DecodeReadResult(data[i*size : (i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("%s: response %d: %w", stage, i, err)
		}

		values[i] = v
	}

	return values, nil
}

// WriteRegister performs one indirect register write.
func (d *driverImpl) WriteRegister(
	ctx context.Context,
	addr cim.InnerAddress,
	value cim.InnerValue,
) error {
	if err := d.ensureConfigured(ctx); err != nil {
		return err
	}

	if err := d.send("register", []frame.Transaction{frame.BuildWrite(addr, value)}); err != nil {
		return d.fail("register", err)
	}

	cim.Trace("Write register", "Driver", d.name, "Addr", addr, "Value", value)

	return nil
}

// ReadRegister performs one indirect register read.
func (d *driverImpl) ReadRegister(
	ctx context.Context,
	addr cim.InnerAddress,
) (cim.InnerValue, error) {
	if err := d.ensureConfigured(ctx); err != nil {
		return 0, err
	}

	values, err := d.readBatch(ctx, "register", []cim.InnerAddress{addr})
	if err != nil {
		return 0, d.fail("register", err)
	}

	cim.Trace("Read register", "Driver", d.name, "Addr", addr, "Value", values[0])

	return values[0], nil
}

// ReadRegisters reads several registers in one batch.
func (d *driverImpl) ReadRegisters(
	ctx context.Context,
	addrs []cim.InnerAddress,
) ([]cim.InnerValue, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	if len(addrs) == 1 {
		v, err := d.ReadRegister(ctx, addrs[0])
		if err != nil {
			return nil, err
		}

		return []cim.InnerValue{v}, nil
	}

	if err := d.ensureConfigured(ctx); err != nil {
		return nil, err
	}

	values, err := d.readBatch(ctx, "register", addrs)
	if err != nil {
		return nil, d.fail("register", err)
	}

	return values, nil
}

// ClearActivationFlag clears the activation-done status bit so that the next
// compute can be detected.
func (d *driverImpl) ClearActivationFlag(ctx context.Context) error {
	return d.WriteRegister(ctx, d.config.Ports.Status, ActivationFlag)
}
