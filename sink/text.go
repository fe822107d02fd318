package sink

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("sink closed")

// Files written by TextSink, one line per step.
const (
	ReceivedFile       = "received.txt"
	ReceivedScaledFile = "received_scaled.txt"
	TheoryFile         = "theory.txt"
	WeightsFile        = "weights.txt"
)

type lineFile struct {
	f *os.File
	w *bufio.Writer
}

// TextSink appends every record to plain-text files under a per-run
// directory. Vectors are written as "[a, b, c]".
type TextSink struct {
	id    string
	dir   string
	files map[string]*lineFile
}

// NewTextSink creates the run directory under root and opens the output
// files.
func NewTextSink(root string) (*TextSink, error) {
	s := &TextSink{
		id:    NewRunID(),
		files: make(map[string]*lineFile),
	}
	s.dir = filepath.Join(root, s.id)

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	for _, name := range []string{ReceivedFile, ReceivedScaledFile, TheoryFile, WeightsFile} {
		f, err := os.OpenFile(filepath.Join(s.dir, name),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open %s: %w", name, err)
		}

		s.files[name] = &lineFile{f: f, w: bufio.NewWriter(f)}
	}

	return s, nil
}

// RunID returns the run identifier.
func (s *TextSink) RunID() string {
	return s.id
}

// Dir returns the directory holding the files of the run.
func (s *TextSink) Dir() string {
	return s.dir
}

func (s *TextSink) writeLine(name, line string) error {
	lf, ok := s.files[name]
	if !ok {
		return ErrClosed
	}

	if _, err := lf.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

// Write appends the record to the files. Weights are written only when the
// step loaded new weights, scaled outputs only when the step ran a quantized
// cycle.
func (s *TextSink) Write(r Record) error {
	if err := s.writeLine(ReceivedFile, FormatInts(r.Received)); err != nil {
		return err
	}

	if err := s.writeLine(TheoryFile, FormatInts(r.Expected)); err != nil {
		return err
	}

	if r.Scaled != nil {
		if err := s.writeLine(ReceivedScaledFile, FormatFloats(r.Scaled)); err != nil {
			return err
		}
	}

	if r.Weights != nil {
		if err := s.writeLine(WeightsFile, hex.EncodeToString(r.Weights)); err != nil {
			return err
		}
	}

	return nil
}

// Close flushes and closes every file.
func (s *TextSink) Close() error {
	var errs []error

	for name, lf := range s.files {
		if err := lf.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush %s: %w", name, err))
		}

		if err := lf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}

	s.files = map[string]*lineFile{}

	return errors.Join(errs...)
}

// FormatInts renders a vector as "[a, b, c]".
func FormatInts(v []int32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatInt(int64(x), 10)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatFloats renders a vector as "[a, b, c]" with the shortest exact
// representation of each value.
func FormatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}
