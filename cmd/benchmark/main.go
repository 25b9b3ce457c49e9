package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	hub "github.com/delaneyj/signalhub"
)

const (
	itersKey   = "iters"
	formatKey  = "format"
	profileKey = "profile"
)

var (
	ww = []int{1, 10, 100}
	hh = []int{1, 10, 100}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure signalhub propagation latency over w*h signal chains",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "Writes per grid cell",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  formatKey,
				Usage: "Output format: pretty or ascii",
				Value: "pretty",
			},
			&cli.BoolFlag{
				Name:  profileKey,
				Usage: "Write a CPU profile to default.pgo",
				Value: false,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

type gridResult struct {
	name       string
	iters      int64
	recomputes int64
	avg        time.Duration
	min        time.Duration
	p75        time.Duration
	p99        time.Duration
	max        time.Duration
}

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))
	format := cmd.String(formatKey)

	if cmd.Bool(profileKey) {
		f, err := os.Create("default.pgo")
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")
	benchmarkPropagate(1, 1, iters)

	results := make([]gridResult, 0, len(ww)*len(hh))
	for _, w := range ww {
		for _, h := range hh {
			log.Printf("propagate %d * %d", w, h)
			results = append(results, benchmarkPropagate(w, h, iters))
		}
	}

	switch format {
	case "ascii":
		renderASCII(results)
	default:
		renderPretty(results)
	}
	return nil
}

func benchmarkPropagate(w, h, iters int) gridResult {
	rt := hub.NewRuntime(hub.Config{
		MaxSignals:       1_000_000,
		MaxComputedDepth: 10 * hh[len(hh)-1],
	})

	tach := tachymeter.New(&tachymeter.Config{Size: iters})

	var recomputes int64
	src := hub.NewSignalIn(rt, 1)
	for i := 0; i < w; i++ {
		last := hub.NewComputedIn(rt, func() int {
			recomputes++
			return src.Get() + 1
		})
		for j := 1; j < h; j++ {
			prev := last
			last = hub.NewComputedIn(rt, func() int {
				recomputes++
				return prev.Get() + 1
			})
		}

		hub.EffectIn(rt, func() {
			last.Get()
		})
	}

	for i := 0; i < iters; i++ {
		start := time.Now()
		src.Set(src.Peek() + 1)
		tach.AddTime(time.Since(start))
	}

	calc := tach.Calc()
	return gridResult{
		name:       fmt.Sprintf("propagate: %d * %d", w, h),
		iters:      int64(iters),
		recomputes: recomputes,
		avg:        calc.Time.Avg,
		min:        calc.Time.Min,
		p75:        calc.Time.P75,
		p99:        calc.Time.P99,
		max:        calc.Time.Max,
	}
}

func renderPretty(results []gridResult) {
	tbl := table.NewWriter()
	tbl.SetTitle("signalhub")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "writes", "recomputes", "avg", "min", "p75", "p99", "max"})
	for _, r := range results {
		tbl.AppendRows([]table.Row{
			{
				r.name,
				humanize.Comma(r.iters),
				humanize.Comma(r.recomputes),
				r.avg,
				r.min,
				r.p75,
				r.p99,
				r.max,
			},
		})
	}
	tbl.Render()
}

func renderASCII(results []gridResult) {
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.SetHeader([]string{"benchmark", "writes", "recomputes", "avg", "min", "p75", "p99", "max"})
	for _, r := range results {
		tbl.Append([]string{
			r.name,
			humanize.Comma(r.iters),
			humanize.Comma(r.recomputes),
			fmt.Sprint(r.avg),
			fmt.Sprint(r.min),
			fmt.Sprint(r.p75),
			fmt.Sprint(r.p99),
			fmt.Sprint(r.max),
		})
	}
	tbl.Render()
}
