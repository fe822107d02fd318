package frame

import (
	"fmt"

	"github.com/sarchlab/cimhost/cim"
)

// TransactionSize is the length of one indirect transaction in bytes.
const TransactionSize = 4 * Size

// Response layouts of an indirect read on the return channel. The result
// high byte sits at offset 0 and the low byte at offset 4 in both.
const (
	// CompactResponseSize is one 4-byte word per read-request frame.
	CompactResponseSize = 2 * Size
	// EchoedResponseSize adds two trailing slots echoing the read requests.
	EchoedResponseSize = 4 * Size

	resHiOffset = 0
	resLoOffset = Size
)

// A Transaction is four frames that must be sent in order and in one batch.
type Transaction [TransactionSize]byte

// Frame returns the i-th frame of the transaction.
func (t Transaction) Frame(i int) Frame {
	var f Frame
	copy(f[:], t[i*Size:(i+1)*Size])

	return f
}

// Bytes returns the transaction as a byte slice.
func (t Transaction) Bytes() []byte {
	b := make([]byte, TransactionSize)
	copy(b, t[:])

	return b
}

// Staged re-extracts the inner address and value staged by a write
// transaction.
func (t Transaction) Staged() (cim.InnerAddress, cim.InnerValue) {
	addr := t.Frame(0).Payload()
	lo := t.Frame(1).Payload()
	hi := t.Frame(2).Payload()

	return addr, uint16(hi)<<8 | uint16(lo)
}

// IsRead tells if the transaction commits a read.
func (t Transaction) IsRead() bool {
	commit := t.Frame(1)
	return commit.Outer() == OuterCommit && commit.Payload() == CommitRead
}

func assemble(frames ...Frame) Transaction {
	var t Transaction
	for i, f := range frames {
		copy(t[i*Size:], f[:])
	}

	return t
}

// BuildWrite stages addr and value and commits an inner register write.
func BuildWrite(addr cim.InnerAddress, value cim.InnerValue) Transaction {
	return assemble(
		mustWrite(OuterAddr, addr),
		mustWrite(OuterDataLo, byte(value)),
		mustWrite(OuterDataHi, byte(value>>8)),
		mustWrite(OuterCommit, CommitWrite),
	)
}

// BuildRead stages addr, commits an inner register read and requests the
// result high byte then the low byte. The request order is fixed by the
// bridge and must not change.
func BuildRead(addr cim.InnerAddress) Transaction {
	return assemble(
		mustWrite(OuterAddr, addr),
		mustWrite(OuterCommit, CommitRead),
		mustRead(OuterResHi),
		mustRead(OuterResLo),
	)
}

// EncodeRegisterWrite range-checks its arguments and returns the bytes of a
// write transaction.
func EncodeRegisterWrite(addr, value int) ([]byte, error) {
	if addr < 0 || addr > 0xFF {
		return nil, fmt.Errorf("inner address %d: %w", addr, cim.ErrInvalidAddress)
	}

	if value < 0 || value > 0xFFFF {
		return nil, fmt.Errorf("inner value %d: %w", value, cim.ErrInvalidData)
	}

	t := BuildWrite(uint8(addr), uint16(value))

	return t.Bytes(), nil
}

// EncodeRegisterRead range-checks addr and returns the bytes of a read
// transaction.
func EncodeRegisterRead(addr int) ([]byte, error) {
	if addr < 0 || addr > 0xFF {
		return nil, fmt.Errorf("inner address %d: %w", addr, cim.ErrInvalidAddress)
	}

	t := BuildRead(uint8(addr))

	return t.Bytes(), nil
}

// DecodeReadResult extracts the 16-bit result of one indirect read from its
// response. Bytes outside the two result slots are discarded.
func DecodeReadResult(b []byte) (cim.InnerValue, error) {
	if len(b) != CompactResponseSize && len(b) != EchoedResponseSize {
		return 0, fmt.Errorf("read response of %d bytes: %w",
			len(b), cim.ErrSizeMismatch)
	}

	return uint16(b[resHiOffset])<<8 | uint16(b[resLoOffset]), nil
}

// Concat joins transactions into one contiguous batch.
func Concat(txns []Transaction) []byte {
	b := make([]byte, 0, len(txns)*TransactionSize)
	for _, t := range txns {
		b = append(b, t[:]...)
	}

	return b
}
