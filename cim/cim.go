// Package cim defines the commonly used data structures for talking to the
// compute-in-memory accelerator behind the FPGA FIFO bridge.
package cim

// InnerAddress identifies a 16-bit register inside the accelerator's own
// control space. It is distinct from the bridge's outer addresses.
type InnerAddress = uint8

// InnerValue is the unit of an inner register read or write.
type InnerValue = uint16

// Fixed tensor and output sizes of the 64x64 array.
const (
	Lanes           = 64
	WeightBytes     = Lanes * Lanes / 8
	ActivationBytes = Lanes / 2
	OutputPlanes    = 10
	OutputBytes     = OutputPlanes * Lanes / 8
	OutputReads     = OutputBytes / 2
	MaxNibble       = 15
)

// Interface selects the serial link between the FPGA and the chip.
type Interface int

const (
	I2C Interface = iota
	SPI
)

// Name returns the name of the interface.
func (i Interface) Name() string {
	switch i {
	case I2C:
		return "I2C"
	case SPI:
		return "SPI"
	default:
		panic("invalid interface")
	}
}

// A Transport moves bytes between the host and the FPGA bridge. It is owned
// by exactly one driver for the duration of a cycle.
type Transport interface {
	// SendFrames writes a batch of command frames into the outbound FIFO.
	// The batch is transmitted contiguously.
	SendFrames(data []byte) error

	// ReceiveBytes pulls exactly n bytes from the return FIFO.
	ReceiveBytes(n int) ([]byte, error)

	// StatusReady reports whether the return FIFO holds any data.
	StatusReady() (bool, error)

	// FullnessReached reports whether the return FIFO reached the level set
	// by ConfigureThreshold.
	FullnessReached() (bool, error)

	// Reset issues a device reset.
	Reset() error

	// SelectInterface selects the link between the FPGA and the chip.
	SelectInterface(itf Interface) error

	// ConfigureThreshold sets the return FIFO fill level, in 32-bit words,
	// at which FullnessReached turns true.
	ConfigureThreshold(words int) error
}
