package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/blockbroadcast/simulator/internal/simlog"
)

var flags = []cli.Flag{
	&cli.StringFlag{Name: "discipline", Value: disciplineHashAnnounce, Usage: "hash-announce | chunked-pull | availability-gossip | honeybadger"},
	&cli.IntFlag{Name: "num-nodes", Value: 4, Usage: "fleet size"},
	&cli.DurationFlag{Name: "link-delay", Value: 100 * time.Millisecond, Usage: "per-edge propagation delay"},
	&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "virtual time to simulate"},

	&cli.Float64Flag{Name: "mine-intv", Value: 10, Usage: "mean inter-block time in seconds, Continuous mode"},
	&cli.Float64Flag{Name: "mining-rate", Value: 0.1, Usage: "blocks/s, Round mode Poisson mean"},
	&cli.Float64Flag{Name: "round-intv", Value: 0, Usage: "seconds; 0 selects Continuous mode"},
	&cli.IntFlag{Name: "num-fixed-miners", Value: 0, Usage: "0 disables FixedCommittee mode"},
	&cli.Float64Flag{Name: "proc-time", Value: 0.01, Usage: "per-block CPU delay in seconds for peer-received blocks"},

	&cli.Float64Flag{Name: "incoming-rate", Value: 0, Usage: "bits/s; 0 disables shaping"},
	&cli.Float64Flag{Name: "outgoing-rate", Value: 0, Usage: "bits/s; 0 disables shaping"},
	&cli.IntFlag{Name: "total-chunks", Value: 64, Usage: "chunks per block, disciplines B/C"},

	&cli.Int64Flag{Name: "seed", Value: 1, Usage: "base RNG seed; node id is added per node"},
	&cli.BoolFlag{Name: "verbose", Usage: "emit per-event debug logging"},
}

func configFromContext(c *cli.Context) config {
	return config{
		Discipline: c.String("discipline"),

		NumNodes:  c.Int("num-nodes"),
		LinkDelay: c.Duration("link-delay"),
		Duration:  c.Duration("duration"),

		MineIntv:       c.Float64("mine-intv"),
		MiningRate:     c.Float64("mining-rate"),
		RoundIntv:      c.Float64("round-intv"),
		NumFixedMiners: c.Int("num-fixed-miners"),
		ProcTime:       c.Float64("proc-time"),

		IncomingRate: c.Float64("incoming-rate"),
		OutgoingRate: c.Float64("outgoing-rate"),
		TotalChunks:  c.Int("total-chunks"),

		Seed: c.Int64("seed"),
	}
}

// run is the `bbsim run` (and bare `bbsim`) action: one simulation,
// console summary.
func run(c *cli.Context) error {
	if c.Bool("verbose") {
		simlog.SetLevel(slog.LevelDebug)
	}
	logger := simlog.New("bbsim")

	cfg := configFromContext(c)
	logger.Info("starting run", "discipline", cfg.Discipline, "numNodes", cfg.NumNodes, "duration", cfg.Duration)

	result, err := buildAndRun(cfg, nil)
	if err != nil {
		return err
	}

	printSummary(cfg, result)
	return nil
}

func printSummary(cfg config, r runResult) {
	bold := color.New(color.Bold)
	bold.Println("blockbroadcast simulator — run summary")
	fmt.Printf("  discipline:     %s\n", cfg.Discipline)
	fmt.Printf("  nodes:          %d\n", cfg.NumNodes)
	fmt.Printf("  virtual time:   %s\n", r.Duration)
	fmt.Printf("  events:         %d\n", r.Delivered)

	printStat := func(name string, values []float64) {
		if len(values) == 0 {
			color.Yellow("  %-15s no samples", name+":")
			return
		}
		mean, min, max := summarize(values)
		fmt.Printf("  %-15s n=%-6d mean=%.4fs min=%.4fs max=%.4fs\n", name+":", len(values), mean, min, max)
	}
	printStat("blockDelay", r.BlockDelay)
	printStat("roundInterval", r.RoundIntv)
}

func summarize(values []float64) (mean, min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return sum / float64(len(values)), min, max
}

func main() {
	app := &cli.App{
		Name:  "bbsim",
		Usage: "discrete-event simulator for block-dissemination protocols",
		Flags: flags,
		Action: run,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run a single simulation and print a summary",
				Flags:  flags,
				Action: run,
			},
			{
				Name:   "batch",
				Usage:  "run N independent replications concurrently and aggregate results",
				Flags:  append(append([]cli.Flag{}, flags...), batchFlags...),
				Action: runBatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("bbsim: %v", err)
		os.Exit(1)
	}
}
