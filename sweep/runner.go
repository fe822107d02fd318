package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarchlab/cimhost/api"
	"github.com/sarchlab/cimhost/metrics"
	"github.com/sarchlab/cimhost/sink"
	"github.com/sarchlab/cimhost/tensor"
	"github.com/sarchlab/cimhost/verify"
)

// Runner runs sweeps on a driver.
type Runner struct {
	Driver    api.Driver
	Sink      sink.ResultSink
	Tolerance verify.Tolerance

	// Scaled also runs a quantized cycle at every step.
	Scaled bool
}

// Summary aggregates the steps of a sweep.
type Summary struct {
	Name     string
	RunID    string
	Steps    int
	Failures int
	MaxDiff  int32
}

// Run executes every step of s. The weights are loaded on the first step
// and reused afterwards.
func (r Runner) Run(ctx context.Context, weights []byte, s Sweep) (Summary, error) {
	sum := Summary{Name: s.Name, RunID: r.Sink.RunID()}

	for i, nibbles := range s.Steps {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		var w []byte
		if i == 0 {
			w = weights
		}

		rec, err := r.step(ctx, w, weights, nibbles)
		if err != nil {
			return sum, fmt.Errorf("sweep %s step %d: %w", s.Name, i, err)
		}

		rec.Step = i
		if err := r.Sink.Write(rec); err != nil {
			return sum, fmt.Errorf("sweep %s step %d: %w", s.Name, i, err)
		}

		sum.Steps++
		if !rec.OK {
			sum.Failures++
		}

		if rec.MaxDiff > sum.MaxDiff {
			sum.MaxDiff = rec.MaxDiff
		}
	}

	slog.Info("Sweep finished",
		"Sweep", s.Name,
		"RunID", sum.RunID,
		"Steps", sum.Steps,
		"Failures", sum.Failures,
		"MaxDiff", sum.MaxDiff,
	)

	return sum, nil
}

func (r Runner) step(
	ctx context.Context,
	load, weights []byte,
	nibbles []uint8,
) (sink.Record, error) {
	acts, err := tensor.PackActivations(nibbles)
	if err != nil {
		return sink.Record{}, err
	}

	golden, err := verify.ExpectedOutput(weights, acts)
	if err != nil {
		return sink.Record{}, err
	}

	result, err := r.Driver.RunCycle(ctx, load, acts)
	if err != nil {
		return sink.Record{}, err
	}

	cmp := verify.Compare(result.Output, golden, r.Tolerance)
	metrics.CimCompareMaxDiff.Set(float64(cmp.MaxDiff))
	if !cmp.OK() {
		metrics.CimCompareFailuresTotal.Inc()
		slog.Warn("Output out of tolerance",
			"Lanes", len(cmp.Issues),
			"MaxDiff", cmp.MaxDiff,
		)
	}

	rec := sink.Record{
		Weights:     load,
		Activations: nibbles,
		Received:    result.Output,
		Expected:    golden,
		Factor:      1,
		MaxDiff:     cmp.MaxDiff,
		OK:          cmp.OK(),
	}

	if !r.Scaled {
		return rec, nil
	}

	if err := r.Driver.ClearActivationFlag(ctx); err != nil {
		return sink.Record{}, err
	}

	scaled, err := r.Driver.RunScaledCycle(ctx, nil, nibbles)
	if err != nil {
		return sink.Record{}, err
	}

	rec.Scaled = scaled.Rescaled
	rec.Factor = scaled.Factor

	return rec, nil
}
