package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/i5heu/GoRingQueue/internal/testbench"
	"github.com/i5heu/GoRingQueue/pkg/config"
)

func main() {
	// Flags.
	configPath := flag.String("config", "", "YAML file with capacity, duration, iterations, scenarios and implementations")
	testIterations := flag.Int("iter", 0, "Number of test iterations per concurrency setting (overrides the config)")
	cpuMaxFlag := flag.Int("cpu", 0, "If non-zero, test only that GOMAXPROCS value; if 0, test common CPU/vCPU values up to runtime.NumCPU()")
	implFlag := flag.String("impl", "", "Comma separated implementation or package names to run (overrides the config)")
	jsonExport := flag.Bool("json", false, "Export results as JSON to test-results.json")
	highConcurrency := flag.Bool("high-concurrency", false, "Include high concurrency configurations")
	markdownTable := flag.Bool("markdown-table", false, "Output markdown table from test-results.json and exit")
	jsonFileForMarkdown := flag.String("jsonfile", "test-results.json", "Path to JSON file for markdown table")
	progressFlag := flag.Bool("progress", false, "Display a progress bar with ETA")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *markdownTable {
		sessions, err := readReports(*jsonFileForMarkdown)
		if err == nil {
			err = writeMarkdownTable(os.Stdout, sessions)
		}
		if err != nil {
			logger.Error("markdown table", "file", *jsonFileForMarkdown, "err", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Error("load config", "path", *configPath, "err", err)
			os.Exit(1)
		}
	}
	if *testIterations > 0 {
		cfg.Iterations = *testIterations
	}
	if *implFlag != "" {
		cfg.Implementations = strings.Split(*implFlag, ",")
	}
	if *highConcurrency {
		cfg.Scenarios = append(cfg.Scenarios, config.HighConcurrency()...)
	}

	impls := selectImplementations(cfg.Implementations)
	if len(impls) == 0 {
		logger.Error("no implementation matches", "names", cfg.Implementations)
		os.Exit(1)
	}

	trueCpuCount := runtime.NumCPU()
	var cpuSettings []int
	// Define the common CPU/vCPU settings.
	commonCPUs := []int{1, 2, 3, 4, 6, 8, 12, 16, 32, 48, 56, 64, 96, 128, 192, 256, 384, 512}

	if *cpuMaxFlag > 0 {
		desired := *cpuMaxFlag
		if desired > trueCpuCount {
			desired = trueCpuCount
		}
		cpuSettings = []int{desired}
	} else {
		for _, v := range commonCPUs {
			if v <= trueCpuCount {
				cpuSettings = append(cpuSettings, v)
			}
		}
	}

	totalTests := len(cpuSettings) * len(cfg.Scenarios) * cfg.Iterations * len(impls)
	var bar *progressbar.ProgressBar
	if *progressFlag {
		bar = progressbar.NewOptions(totalTests,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Progress"),
			progressbar.OptionSetWidth(20),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}

	sessionID := uuid.NewString()
	logger.Debug("session start", "session", sessionID, "tests", totalTests, "capacity", cfg.Capacity, "duration", cfg.Duration)

	var allSessions []FullReport

	// Iterate over the desired GOMAXPROCS settings.
	for _, cpus := range cpuSettings {
		runtime.GOMAXPROCS(cpus)
		sysInfo := gatherSystemInfo()
		sysInfo.NumCPU = cpus
		sysInfo.TrueCPU = trueCpuCount
		sysInfo.SimulatedCPUCount = cpus

		fmt.Printf("\n=============================\n")
		fmt.Printf("GOMAXPROCS = %d\n", cpus)
		fmt.Printf("=============================\n")

		var results []BenchmarkResult

		for _, sc := range cfg.Scenarios {
			fmt.Printf("  [Concurrency: producers=%d, consumers=%d]\n", sc.NumProducers, sc.NumConsumers)
			for iteration := 1; iteration <= cfg.Iterations; iteration++ {
				fmt.Printf("    iteration %d/%d\n", iteration, cfg.Iterations)
				for _, impl := range impls {
					res, err := runOne(impl, cfg.Capacity, sc, cfg.Duration)
					if err != nil {
						logger.Error("run failed", "impl", impl.name, "err", err)
						os.Exit(1)
					}
					fmt.Printf("    %s => produced=%d, consumed=%d, throughput=%.0f msg/s, took=%v\n",
						impl.name, res.NumMessages, res.NumMessagesConsumed, res.Throughput, res.ActualElapsed)
					if res.NumMessages != res.NumMessagesConsumed {
						logger.Warn("produced and consumed differ", "impl", impl.name,
							"produced", res.NumMessages, "consumed", res.NumMessagesConsumed)
					}
					results = append(results, res)
					if bar != nil {
						_ = bar.Add(1)
					}
				}
			}
		}

		allSessions = append(allSessions, FullReport{
			SessionID:   sessionID,
			SessionTime: time.Now().Format(time.RFC3339),
			SystemInfo:  sysInfo,
			Benchmarks:  results,
		})
	}

	if bar != nil {
		_ = bar.Finish()
	}

	if *jsonExport {
		const filename = "test-results.json"
		if err := appendReports(filename, allSessions); err != nil {
			logger.Error("write results", "file", filename, "err", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote results to %s\n", filename)
	}
}

// runOne runs a single timed test on a fresh queue.
func runOne(impl Implementation, capacity uint32, sc testbench.Config, d time.Duration) (BenchmarkResult, error) {
	runtime.GC()
	q, release, err := impl.newQueue(capacity)
	if err != nil {
		return BenchmarkResult{}, fmt.Errorf("create %s: %w", impl.name, err)
	}
	defer release()
	time.Sleep(250 * time.Millisecond)

	produced, consumed, actualTime := testbench.RunTimedTest(q, sc, d, func(i int) *int {
		v := i
		return &v
	})
	return BenchmarkResult{
		Implementation:      impl.name,
		NumProducers:        sc.NumProducers,
		NumConsumers:        sc.NumConsumers,
		Capacity:            capacity,
		NumMessages:         produced,
		NumMessagesConsumed: consumed,
		TestDuration:        d.String(),
		ActualElapsed:       actualTime.String(),
		Throughput:          float64(consumed) / actualTime.Seconds(),
		Timestamp:           time.Now().Unix(),
		GoVersion:           runtime.Version(),
	}, nil
}
