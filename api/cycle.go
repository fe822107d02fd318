package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/frame"
	"github.com/sarchlab/cimhost/metrics"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/tensor"
)

// cyclePlan holds every transaction of a cycle. It is built before any
// byte is sent so that malformed input never reaches the device.
type cyclePlan struct {
	weights []frame.Transaction
	acts    []frame.Transaction
	reads   []cim.InnerAddress
}

func (d *driverImpl) plan(weights, acts []byte) (*cyclePlan, error) {
	c := d.config
	p := &cyclePlan{}

	if weights == nil && !d.weightsLoaded {
		return nil, ErrNoWeights
	}

	if weights != nil {
		txns, err := tensor.EncodeWeights(weights, c.Ports.Weight)
		if err != nil {
			return nil, fmt.Errorf("weights: %w", err)
		}

		// New weights invalidate both status bits.
		p.weights = append(p.weights, frame.BuildWrite(c.Ports.Status, c.DoneMask))
		p.weights = append(p.weights, txns...)
	}

	txns, err := tensor.EncodeActivations(acts, c.Ports.Activation)
	if err != nil {
		return nil, fmt.Errorf("activations: %w", err)
	}

	p.acts = append(p.acts, frame.BuildWrite(c.Ports.Status, ActivationFlag))
	p.acts = append(p.acts, txns...)

	reads := c.Output.BlockSize() / 2
	p.reads = make([]cim.InnerAddress, reads)
	for i := range p.reads {
		p.reads[i] = c.Ports.Output
	}

	return p, nil
}

// RunCycle runs one compute cycle.
func (d *driverImpl) RunCycle(
	ctx context.Context,
	weights, acts []byte,
) (CycleResult, error) {
	result, err := d.runCycle(ctx, weights, acts)
	if err != nil {
		metrics.CimCyclesTotal.WithLabelValues("error").Inc()
		return CycleResult{}, err
	}

	metrics.CimCyclesTotal.WithLabelValues("ok").Inc()

	return result, nil
}

func (d *driverImpl) runCycle(
	ctx context.Context,
	weights, acts []byte,
) (CycleResult, error) {
	p, err := d.plan(weights, acts)
	if err != nil {
		return CycleResult{}, err
	}

	if err := d.ensureConfigured(ctx); err != nil {
		return CycleResult{}, err
	}

	if err := d.loadWeights(ctx, p); err != nil {
		return CycleResult{}, err
	}

	if err := d.loadActivations(ctx, p); err != nil {
		return CycleResult{}, err
	}

	polls, err := d.waitCompute(ctx)
	if err != nil {
		return CycleResult{}, d.fail("compute", err)
	}

	raw, err := d.readOutput(ctx, p)
	if err != nil {
		return CycleResult{}, d.fail("output", err)
	}

	out, err := output.Decode(raw, d.config.Output)
	if err != nil {
		return CycleResult{}, d.fail("decode", err)
	}

	d.setState(StateConfigured)

	slog.Info("Cycle finished",
		"Driver", d.name,
		"Polls", polls,
		"NewWeights", weights != nil,
	)

	return CycleResult{
		Raw:    raw,
		Output: out,
		Factor: 1,
		Polls:  polls,
	}, nil
}

func (d *driverImpl) loadWeights(ctx context.Context, p *cyclePlan) error {
	if len(p.weights) == 0 {
		cim.Trace("Reuse weights", "Driver", d.name)
		d.setState(StateWeightsLoaded)

		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	d.weightsLoaded = false
	if err := d.send("weights", p.weights); err != nil {
		return d.fail("weights", err)
	}

	d.weightsLoaded = true
	d.setState(StateWeightsLoaded)

	return nil
}

func (d *driverImpl) loadActivations(ctx context.Context, p *cyclePlan) error {
	if d.state != StateWeightsLoaded {
		panic("activations sent before weights")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := d.send("activations", p.acts); err != nil {
		return d.fail("activations", err)
	}

	d.setState(StateActivationsLoaded)

	return nil
}

// waitCompute polls the status register until every bit of the done mask is
// set.
func (d *driverImpl) waitCompute(ctx context.Context) (int, error) {
	d.setState(StateComputing)

	mask := d.config.DoneMask
	addr := []cim.InnerAddress{d.config.Ports.Status}

	return d.poll(ctx, "compute", func() (bool, error) {
		values, err := d.readBatch(ctx, "status", addr)
		if err != nil {
			return false, err
		}

		return values[0]&mask == mask, nil
	})
}

// readOutput requests every word of the output block in one batch and
// reassembles the block from the responses.
func (d *driverImpl) readOutput(ctx context.Context, p *cyclePlan) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.setState(StateOutputRequested)

	values, err := d.readBatch(ctx, "output", p.reads)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, 2*len(values))
	for _, v := range values {
		raw = append(raw, byte(v>>8), byte(v))
	}

	d.setState(StateOutputReady)

	return raw, nil
}

// RunScaledCycle quantizes the activations, runs a cycle and rescales the
// output.
func (d *driverImpl) RunScaledCycle(
	ctx context.Context,
	weights []byte,
	nibbles []uint8,
) (ScaledResult, error) {
	if len(nibbles) != cim.Lanes {
		return ScaledResult{}, fmt.Errorf("%d activations: %w",
			len(nibbles), cim.ErrSizeMismatch)
	}

	scaled, factor := d.quantizer.Scale(nibbles)

	acts, err := tensor.PackActivations(scaled)
	if err != nil {
		return ScaledResult{}, fmt.Errorf("scaled activations: %w", err)
	}

	result, err := d.RunCycle(ctx, weights, acts)
	if err != nil {
		return ScaledResult{}, err
	}

	result.Factor = factor

	return ScaledResult{
		CycleResult: result,
		Activations: scaled,
		Rescaled:    tensor.Rescale(result.Output, factor),
	}, nil
}
