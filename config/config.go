// Package config provides the host-side configuration of the accelerator:
// inner register map, output format, polling budget and compensation
// constants. Every device-specific constant lives here and can be loaded
// from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/tensor"
	"github.com/sarchlab/cimhost/verify"
)

// Ports holds the inner register addresses used by a compute cycle.
type Ports struct {
	// Weight is the inner port that accepts weight words. Default: 0x30.
	Weight cim.InnerAddress `yaml:"weight"`

	// Activation is the inner port that accepts activation words.
	// Default: 0x34.
	Activation cim.InnerAddress `yaml:"activation"`

	// Output is the inner port that returns output words. Default: 0x38.
	Output cim.InnerAddress `yaml:"output"`

	// Status is the status register polled for completion. Default: 0x00.
	Status cim.InnerAddress `yaml:"status"`
}

// RegisterWrite is one inner register write of the init sequence.
type RegisterWrite struct {
	Addr  cim.InnerAddress `yaml:"addr"`
	Value cim.InnerValue   `yaml:"value"`
}

// Config holds everything the driver needs to know about the device.
type Config struct {
	// Interface is the link between the FPGA and the chip, "i2c" or "spi".
	Interface string `yaml:"interface"`

	Ports Ports `yaml:"ports"`

	// DoneMask is the set of status bits that must all be high for the
	// compute to be considered finished. Default: 0x0003.
	DoneMask cim.InnerValue `yaml:"done_mask"`

	// Output is the layout of the raw output block.
	Output output.Format `yaml:"output"`

	// ResponseSize is the number of bytes the bridge returns per indirect
	// read, 8 or 16. Default: 8.
	ResponseSize int `yaml:"response_size"`

	// FullnessThreshold is the return FIFO level, in 32-bit words, that
	// signals that a batch of output reads is complete. Default: 80.
	FullnessThreshold int `yaml:"fullness_threshold"`

	// InitWrites is replayed after every reset.
	InitWrites []RegisterWrite `yaml:"init_writes"`

	// MaxPolls bounds every wait on the device. Default: 1000.
	MaxPolls int `yaml:"max_polls"`

	// PollInterval is the pause between two polls. Default: 1ms.
	PollInterval time.Duration `yaml:"poll_interval"`

	Correction tensor.PulseCorrection `yaml:"correction"`

	Tolerance verify.Tolerance `yaml:"tolerance"`
}

// Default returns the configuration of the current chip revision.
func Default() *Config {
	return &Config{
		Interface: "spi",
		Ports: Ports{
			Weight:     0x30,
			Activation: 0x34,
			Output:     0x38,
			Status:     0x00,
		},
		DoneMask:          0x0003,
		Output:            output.Packed(output.MaxPrecision),
		ResponseSize:      8,
		FullnessThreshold: 80,
		InitWrites: []RegisterWrite{
			{Addr: 0x14, Value: 0x0090},
			{Addr: 0x00, Value: 0x0003},
			{Addr: 0x2C, Value: 0x0003},
		},
		MaxPolls:     1000,
		PollInterval: time.Millisecond,
		Correction:   tensor.DefaultPulseCorrection,
		Tolerance:    verify.DefaultTolerance(),
	}
}

// Load reads a Config from a YAML file. Fields absent from the file keep
// their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return c, nil
}

// Save writes the Config to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if _, err := c.Link(); err != nil {
		return err
	}

	if c.DoneMask == 0 {
		return errors.New("done_mask must not be zero")
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if c.ResponseSize != 8 && c.ResponseSize != 16 {
		return fmt.Errorf("response_size must be 8 or 16, got %d", c.ResponseSize)
	}

	if c.FullnessThreshold <= 0 {
		return errors.New("fullness_threshold must be > 0")
	}

	if c.MaxPolls <= 0 {
		return errors.New("max_polls must be > 0")
	}

	if c.PollInterval < 0 {
		return errors.New("poll_interval must not be negative")
	}

	if c.Correction.Threshold > cim.MaxNibble {
		return fmt.Errorf("correction threshold %d exceeds %d",
			c.Correction.Threshold, cim.MaxNibble)
	}

	if c.Tolerance.Absolute < 0 || c.Tolerance.PerFactor < 0 {
		return errors.New("tolerance must not be negative")
	}

	return nil
}

// Link returns the FPGA to chip interface named by the configuration.
func (c *Config) Link() (cim.Interface, error) {
	switch strings.ToLower(c.Interface) {
	case "i2c":
		return cim.I2C, nil
	case "spi":
		return cim.SPI, nil
	default:
		return 0, fmt.Errorf("unknown interface %q", c.Interface)
	}
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Output.Skip = append([]int(nil), c.Output.Skip...)
	clone.InitWrites = append([]RegisterWrite(nil), c.InitWrites...)

	return &clone
}
