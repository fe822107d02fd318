package api

import (
	"context"
	"fmt"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/config"
	"github.com/sarchlab/cimhost/frame"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/tensor"
	"github.com/sarchlab/cimhost/verify"
)

// EncodeRegisterWrite returns the bytes of one indirect register write.
func EncodeRegisterWrite(addr, value int) ([]byte, error) {
	return frame.EncodeRegisterWrite(addr, value)
}

// EncodeRegisterRead returns the bytes of one indirect register read.
func EncodeRegisterRead(addr int) ([]byte, error) {
	return frame.EncodeRegisterRead(addr)
}

// DecodeRegisterReadResult extracts the value of an indirect read response.
func DecodeRegisterReadResult(b []byte) (uint16, error) {
	return frame.DecodeReadResult(b)
}

func defaultPorts() config.Ports {
	return config.Default().Ports
}

func blocks(txns []frame.Transaction) [][]byte {
	out := make([][]byte, len(txns))
	for i, t := range txns {
		out[i] = t.Bytes()
	}

	return out
}

// EncodeWeightLoad returns one 16-byte block per weight transaction, using
// the default weight port.
func EncodeWeightLoad(weights []byte) ([][]byte, error) {
	txns, err := tensor.EncodeWeights(weights, defaultPorts().Weight)
	if err != nil {
		return nil, err
	}

	return blocks(txns), nil
}

// EncodeActivationLoad returns one 16-byte block per activation transaction,
// using the default activation port.
func EncodeActivationLoad(acts []byte) ([][]byte, error) {
	txns, err := tensor.EncodeActivations(acts, defaultPorts().Activation)
	if err != nil {
		return nil, err
	}

	return blocks(txns), nil
}

// DecodeOutput decodes a packed output block of the given precision.
func DecodeOutput(block []byte, precision int) ([]int32, error) {
	return output.DecodePrecision(block, precision)
}

// ComputeReference returns the exact result the device approximates.
func ComputeReference(weights, acts []byte) ([]int32, error) {
	return verify.ExpectedOutput(weights, acts)
}

// QuantizeActivation scales the 64 activation nibbles of one cycle with the
// default pulse correction.
func QuantizeActivation(nibbles []uint8) ([]uint8, int, error) {
	if len(nibbles) != cim.Lanes {
		return nil, 0, fmt.Errorf("%d activations, want %d: %w",
			len(nibbles), cim.Lanes, cim.ErrSizeMismatch)
	}

	scaled, factor := tensor.NewQuantizer().Scale(nibbles)

	return scaled, factor, nil
}

// RunCycle runs one compute cycle on d and returns the decoded output with
// its scale factor.
func RunCycle(
	ctx context.Context,
	d Driver,
	weights, acts []byte,
) (output.Vector, int, error) {
	r, err := d.RunCycle(ctx, weights, acts)
	if err != nil {
		return nil, 0, err
	}

	return r.Output, r.Factor, nil
}
