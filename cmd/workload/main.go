package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/i5heu/GoRingQueue/internal/workload"
	"github.com/i5heu/GoRingQueue/pkg/ringqueue"
)

func main() {
	def := workload.DefaultConfig()
	modeFlag := flag.String("mode", "both", "Producer/consumer locking: exclusive, shared or both")
	consumers := flag.Int("consumers", def.Consumers, "Number of consumer goroutines")
	lots := flag.Int("lots", def.Lots, "Number of lots to produce")
	items := flag.Int("items", def.ItemsPerLot, "Products per lot")
	unit := flag.Duration("unit", def.Unit, "Work time per product value unit")
	jitter := flag.Duration("jitter", 0, "Random extra work time per product")
	waitFlag := flag.String("wait", "spin", "Slot wait strategy: spin, yield or backoff")
	timeout := flag.Duration("timeout", 0, "Backoff wait timeout (only with -wait=backoff)")
	verbose := flag.Bool("v", false, "Log every product")
	jsonLogs := flag.Bool("json", false, "Log as JSON")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if *jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)

	var ws ringqueue.WaitStrategy
	switch *waitFlag {
	case "spin":
		ws = ringqueue.Spin{}
	case "yield":
		ws = ringqueue.SpinYield{Spins: 64}
	case "backoff":
		b := ringqueue.DefaultBackoff()
		b.Timeout = *timeout
		ws = b
	default:
		fmt.Fprintf(os.Stderr, "unknown wait strategy %q\n", *waitFlag)
		os.Exit(2)
	}

	var modes []workload.Mode
	if *modeFlag == "both" {
		modes = []workload.Mode{workload.Exclusive, workload.Shared}
	} else {
		m, err := workload.ParseMode(*modeFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		modes = []workload.Mode{m}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := false
	for _, mode := range modes {
		st, err := workload.Run(ctx, workload.Config{
			Mode:        mode,
			Consumers:   *consumers,
			Lots:        *lots,
			ItemsPerLot: *items,
			Unit:        *unit,
			Jitter:      *jitter,
			Wait:        ws,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("run failed", "mode", mode, "err", err)
			failed = true
			continue
		}
		fmt.Printf("%-9s pushed=%d shed=%d popped=%v took=%v\n",
			mode, st.Pushed, st.PushFailed, st.Popped, st.Elapsed.Round(time.Microsecond))
		if st.Pushed != st.TotalPopped() {
			logger.Error("lost products", "mode", mode, "pushed", st.Pushed, "popped", st.TotalPopped())
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}
