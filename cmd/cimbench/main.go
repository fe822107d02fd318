// Command cimbench runs an activation sweep against the emulated accelerator
// and checks every step against the reference model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/cimhost/api"
	"github.com/sarchlab/cimhost/cim"
	"github.com/sarchlab/cimhost/config"
	"github.com/sarchlab/cimhost/emu"
	"github.com/sarchlab/cimhost/metrics"
	"github.com/sarchlab/cimhost/sink"
	"github.com/sarchlab/cimhost/sweep"
	"github.com/sarchlab/cimhost/tensor"
)

var (
	configPath  = flag.String("config", "", "YAML configuration file")
	sweepName   = flag.String("sweep", "append-random", "one of: "+strings.Join(sweep.Names, ", "))
	weightsKind = flag.String("weights", "", "random, ones or zeros; defaults to the weights of the sweep, else random")
	seed        = flag.Int64("seed", 1, "random seed")
	scaled      = flag.Bool("scaled", false, "also run a quantized cycle at every step")
	noise       = flag.Int("noise", 0, "amplitude of the emulated analog noise")
	outDir      = flag.String("out", "", "directory of the text result files")
	logPath     = flag.String("log", "cimbench.json.log", "JSON log file")
	metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address until interrupted")
	freqMHz     = flag.Float64("freq", 100, "emulated device frequency in MHz")
)

func setupLogging() {
	f, err := os.Create(*logPath)
	if err != nil {
		log.Fatalf("Failed to create log file: %v", err)
	}

	atexit.Register(func() { f.Close() })

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: cim.LevelTrace,
	})

	slog.SetDefault(slog.New(handler))
}

func loadConfig() *config.Config {
	if *configPath == "" {
		return config.Default()
	}

	c, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	return c
}

func makeWeights(rng *rand.Rand, s sweep.Sweep) []byte {
	switch *weightsKind {
	case "":
		if s.Weights != nil {
			return s.Weights
		}

		return tensor.RandomWeights(rng)
	case "random":
		return tensor.RandomWeights(rng)
	case "ones":
		return tensor.Ones(cim.WeightBytes)
	case "zeros":
		return tensor.Zeros(cim.WeightBytes)
	default:
		log.Fatalf("Unknown weights %q", *weightsKind)
		return nil
	}
}

func makeSink() sink.ResultSink {
	if *outDir == "" {
		return sink.NewMemorySink()
	}

	s, err := sink.NewTextSink(*outDir)
	if err != nil {
		log.Fatalf("Failed to create result sink: %v", err)
	}

	return s
}

func printSummary(sum sweep.Summary, dev *emu.Device, elapsed time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("CIM Sweep")
	t.AppendHeader(table.Row{"Sweep", "Run", "Steps", "Failures", "Max Diff", "MACs", "Device Time (us)", "Wall Time"})
	t.AppendRow(table.Row{
		sum.Name,
		sum.RunID,
		sum.Steps,
		sum.Failures,
		sum.MaxDiff,
		dev.Computations(),
		fmt.Sprintf("%.3f", float64(dev.Now()*1e6)),
		elapsed.Round(time.Millisecond),
	})
	t.Render()
}

func serveMetrics(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: *metricsAddr, Handler: mux}

	g.Go(func() error {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		return server.Shutdown(shutdown)
	})
}

func main() {
	flag.Parse()
	setupLogging()

	cfg := loadConfig()
	rng := rand.New(rand.NewSource(*seed))

	s, err := sweep.ByName(*sweepName, rng)
	if err != nil {
		log.Fatal(err)
	}

	dev := config.DeviceBuilder{}.
		WithConfig(cfg).
		WithFreq(sim.Freq(*freqMHz) * sim.MHz).
		WithNoise(int32(*noise), *seed).
		Build("Device")

	driver := api.DriverBuilder{}.
		WithTransport(dev).
		WithClock(dev).
		WithConfig(cfg).
		Build("Driver")

	results := makeSink()
	atexit.Register(func() {
		if err := results.Close(); err != nil {
			slog.Error("Failed to close result sink", "Error", err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if *metricsAddr != "" {
		serveMetrics(ctx, g)
	}

	var sum sweep.Summary
	start := time.Now()

	g.Go(func() error {
		runner := sweep.Runner{
			Driver:    driver,
			Sink:      results,
			Tolerance: cfg.Tolerance,
			Scaled:    *scaled,
		}

		var err error
		sum, err = runner.Run(ctx, makeWeights(rng, s), s)
		if err != nil {
			return err
		}

		printSummary(sum, dev, time.Since(start))

		if *metricsAddr == "" {
			stop()
		} else {
			fmt.Printf("Serving metrics on %s, interrupt to exit\n", *metricsAddr)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "cimbench: %v\n", err)
		atexit.Exit(1)
	}

	if sum.Failures > 0 {
		atexit.Exit(2)
	}

	atexit.Exit(0)
}
