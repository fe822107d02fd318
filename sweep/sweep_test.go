package sweep_test

import (
	"context"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cimhost/api"
	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/config"
	"github.com/sarchlab/cimhost/sink"
	"github.com/sarchlab/cimhost/sweep"
	"github.com/sarchlab/cimhost/tensor"
)

var _ = Describe("Generators", func() {
	It("should append a nibble lane by lane", func() {
		s, err := sweep.AppendNibble(0xF)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Steps).To(HaveLen(cim.Lanes + 1))
		Expect(s.Steps[0]).To(Equal(make([]uint8, cim.Lanes)))
		Expect(s.Steps[1][0]).To(Equal(uint8(0xF)))
		Expect(s.Steps[1][1]).To(BeZero())
		for _, v := range s.Steps[cim.Lanes] {
			Expect(v).To(Equal(uint8(0xF)))
		}
	})

	It("should reject a value that is not a nibble", func() {
		_, err := sweep.AppendNibble(16)
		Expect(err).To(MatchError(cim.ErrInvalidData))
	})

	It("should increment every lane", func() {
		s := sweep.IncrementEach()

		Expect(s.Steps).To(HaveLen(16))
		Expect(s.Steps[7]).To(HaveEach(uint8(7)))
	})

	It("should append random non-zero nibbles", func() {
		s := sweep.AppendRandom(rand.New(rand.NewSource(1)))

		Expect(s.Steps).To(HaveLen(cim.Lanes + 1))
		last := s.Steps[cim.Lanes]
		for _, v := range last {
			Expect(v).To(BeNumerically(">=", 1))
			Expect(v).To(BeNumerically("<=", cim.MaxNibble))
		}
		Expect(s.Steps[10][:10]).To(Equal(last[:10]))
	})

	It("should raise one lane at a time by one step", func() {
		s := sweep.PlusOne()

		Expect(s.Steps).To(HaveLen(961))
		Expect(s.Steps[0]).To(HaveEach(uint8(0)))
		Expect(s.Steps[1][0]).To(Equal(uint8(1)))
		Expect(s.Steps[15][0]).To(Equal(uint8(15)))
		Expect(s.Steps[15][1]).To(BeZero())
		Expect(s.Steps[16][1]).To(Equal(uint8(1)))
		Expect(s.Steps[960]).To(HaveEach(uint8(cim.MaxNibble)))
		Expect(s.Weights).To(Equal(tensor.Ones(cim.WeightBytes)))

		for i := 1; i < len(s.Steps); i++ {
			var prev, cur int
			for lane := range s.Steps[i] {
				prev += int(s.Steps[i-1][lane])
				cur += int(s.Steps[i][lane])
			}
			Expect(cur - prev).To(Equal(1))
		}
	})

	It("should repeat the same activations", func() {
		nibbles := make([]uint8, cim.Lanes)
		nibbles[3] = 9

		s, err := sweep.Repeat(4, nibbles)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Steps).To(HaveLen(4))
		for _, step := range s.Steps {
			Expect(step).To(Equal(nibbles))
		}

		nibbles[3] = 1
		Expect(s.Steps[0][3]).To(Equal(uint8(9)))
	})

	It("should reject malformed repeats", func() {
		_, err := sweep.Repeat(0, make([]uint8, cim.Lanes))
		Expect(err).To(MatchError(cim.ErrInvalidData))

		_, err = sweep.Repeat(2, make([]uint8, 3))
		Expect(err).To(MatchError(cim.ErrSizeMismatch))

		bad := make([]uint8, cim.Lanes)
		bad[0] = 16
		_, err = sweep.Repeat(2, bad)
		Expect(err).To(MatchError(cim.ErrInvalidData))
	})

	It("should measure the offset with zero activations and positive weights", func() {
		s, err := sweep.MACOffset(10)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Name).To(Equal("mac-offset"))
		Expect(s.Steps).To(HaveLen(10))
		Expect(s.Steps[9]).To(HaveEach(uint8(0)))
		Expect(s.Weights).To(Equal(tensor.Ones(cim.WeightBytes)))
	})

	It("should look sweeps up by name", func() {
		rng := rand.New(rand.NewSource(1))

		for _, name := range sweep.Names {
			s, err := sweep.ByName(name, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Name).NotTo(BeEmpty())
			Expect(s.Steps).NotTo(BeEmpty())
		}

		s, err := sweep.ByName("plus-one", rng)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Steps).To(HaveLen(961))

		_, err = sweep.ByName("nope", rng)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Runner", func() {
	var (
		mem    *sink.MemorySink
		runner sweep.Runner
	)

	BeforeEach(func() {
		cfg := config.Default()
		dev := config.DeviceBuilder{}.WithConfig(cfg).Build("Device")
		driver := api.DriverBuilder{}.
			WithTransport(dev).
			WithClock(dev).
			WithConfig(cfg).
			Build("Driver")

		mem = sink.NewMemorySink()
		runner = sweep.Runner{
			Driver:    driver,
			Sink:      mem,
			Tolerance: cfg.Tolerance,
		}
	})

	It("should record every step within tolerance", func() {
		weights := tensor.RandomWeights(rand.New(rand.NewSource(5)))

		sum, err := runner.Run(context.Background(), weights, sweep.IncrementEach())

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Steps).To(Equal(16))
		Expect(sum.Failures).To(BeZero())
		Expect(sum.RunID).To(Equal(mem.RunID()))
		Expect(mem.Records).To(HaveLen(16))

		Expect(mem.Records[0].Weights).To(Equal(weights))
		Expect(mem.Records[1].Weights).To(BeNil())
		for i, rec := range mem.Records {
			Expect(rec.Step).To(Equal(i))
			Expect(rec.OK).To(BeTrue())
			Expect(rec.Scaled).To(BeNil())
		}
	})

	It("should also run quantized cycles", func() {
		runner.Scaled = true
		weights := tensor.Ones(cim.WeightBytes)

		s, err := sweep.AppendNibble(1)
		Expect(err).NotTo(HaveOccurred())
		s.Steps = s.Steps[:3]

		sum, err := runner.Run(context.Background(), weights, s)

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Steps).To(Equal(3))

		// One active lane of 1 scales to 15, corrected to 14.
		rec := mem.Records[1]
		Expect(rec.Received).To(HaveEach(int32(0)))
		Expect(rec.Factor).To(Equal(15))
		Expect(rec.Scaled).To(HaveEach(BeNumerically("~", 14.0/15, 1e-9)))
	})

	It("should run the offset measurement", func() {
		s, err := sweep.MACOffset(3)
		Expect(err).NotTo(HaveOccurred())

		sum, err := runner.Run(context.Background(), s.Weights, s)

		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Steps).To(Equal(3))
		Expect(sum.Failures).To(BeZero())
		for _, rec := range mem.Records {
			Expect(rec.Expected).To(HaveEach(int32(0)))
		}
	})

	It("should stop on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := runner.Run(ctx, tensor.Zeros(cim.WeightBytes), sweep.IncrementEach())
		Expect(err).To(MatchError(context.Canceled))
	})
})
