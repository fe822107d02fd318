package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/output"
	"github.com/sarchlab/cimhost/tensor"
	"github.com/sarchlab/cimhost/verify"
)

type scenario struct {
	name    string
	weights []byte
	acts    []byte
}

func main() {
	seed := flag.Int64("seed", 1, "random seed")
	random := flag.Int("random", 8, "number of random scenarios")
	precision := flag.Int("precision", 10, "output precision in bits")
	flag.Parse()

	format := output.Packed(*precision)
	if err := format.Validate(); err != nil {
		log.Fatalf("Invalid precision %d: %v", *precision, err)
	}

	rng := rand.New(rand.NewSource(*seed))
	scenarios := []scenario{
		{"all positive", tensor.Ones(cim.WeightBytes), tensor.Constant(cim.ActivationBytes, 0x11)},
		{"all negative", tensor.Zeros(cim.WeightBytes), tensor.Constant(cim.ActivationBytes, 0x11)},
		{"zero activations", tensor.RandomWeights(rng), tensor.Zeros(cim.ActivationBytes)},
		{"max activations", tensor.RandomWeights(rng), tensor.Ones(cim.ActivationBytes)},
	}

	for i := 0; i < *random; i++ {
		scenarios = append(scenarios, scenario{
			name:    fmt.Sprintf("random %d", i),
			weights: tensor.RandomWeights(rng),
			acts:    tensor.RandomActivations(rng),
		})
	}

	fmt.Println("==============================================================================")
	fmt.Println("CIM GOLDEN MODEL VERIFICATION")
	fmt.Println("==============================================================================")
	fmt.Printf("\nOutput format: %d planes, precision %d\n\n", format.Planes, format.Precision())

	failed := 0
	for _, s := range scenarios {
		golden, err := verify.ExpectedOutput(s.weights, s.acts)
		if err != nil {
			log.Fatalf("Scenario %q: %v", s.name, err)
		}

		block, err := output.Encode(golden, format)
		if err != nil {
			log.Fatalf("Scenario %q: encode failed: %v", s.name, err)
		}

		device, err := output.Decode(block, format)
		if err != nil {
			log.Fatalf("Scenario %q: decode failed: %v", s.name, err)
		}

		cmp := verify.Compare(device, golden, verify.DefaultTolerance())
		if cmp.OK() {
			fmt.Printf("✅ %-20s max diff %d\n", s.name, cmp.MaxDiff)
			continue
		}

		failed++
		fmt.Printf("❌ %-20s %d lanes out of tolerance\n", s.name, len(cmp.Issues))
		r := cmp.Report()
		r.Title = s.name
		r.WriteReport(os.Stdout)
	}

	fmt.Println()
	fmt.Println("==============================================================================")
	fmt.Printf("%d/%d scenarios passed\n", len(scenarios)-failed, len(scenarios))
	fmt.Println("==============================================================================")

	if failed > 0 {
		os.Exit(1)
	}
}
