// Package sink records the results of compute cycles. The driver never
// writes results itself; the caller passes a ResultSink to the experiment
// that produces them.
package sink

import (
	"github.com/google/uuid"

	"github.com/sarchlab/cimhost/output"
)

// Record is the outcome of one step of an experiment.
type Record struct {
	RunID string
	Step  int

	// Weights is nil when the step reused the weights of a previous step.
	Weights     []byte
	Activations []uint8

	Received output.Vector
	Expected output.Vector

	// Scaled is the output of the quantized cycle divided by Factor. It is
	// nil when the step did not run a quantized cycle.
	Scaled []float64
	Factor int

	MaxDiff int32
	OK      bool
}

// A ResultSink consumes records. Implementations are not safe for
// concurrent use.
type ResultSink interface {
	// RunID identifies the run the sink records.
	RunID() string

	Write(r Record) error
	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// MemorySink keeps every record in memory.
type MemorySink struct {
	id      string
	Records []Record
	closed  bool
}

// NewMemorySink creates a MemorySink with a fresh run ID.
func NewMemorySink() *MemorySink {
	return &MemorySink{id: NewRunID()}
}

// RunID returns the run identifier.
func (s *MemorySink) RunID() string {
	return s.id
}

// Write appends a record.
func (s *MemorySink) Write(r Record) error {
	if s.closed {
		return ErrClosed
	}

	r.RunID = s.id
	s.Records = append(s.Records, r)

	return nil
}

// Close marks the sink closed.
func (s *MemorySink) Close() error {
	s.closed = true
	return nil
}
