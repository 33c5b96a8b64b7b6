package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// categoryTicks implements a categorical X-axis: 0,1,2,... => labels for concurrency.
type categoryTicks struct {
	positions []float64
	labels    []string
}

func (ct categoryTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for i, pos := range ct.positions {
		if pos >= min && pos <= max {
			ticks = append(ticks, plot.Tick{Value: pos, Label: ct.labels[i]})
		}
	}
	return ticks
}

// logTicks spaces about n labelled ticks evenly on a log axis.
func logTicks(n float64, format func(float64) string) plot.TickerFunc {
	return func(min, max float64) []plot.Tick {
		if min <= 0 {
			min = 1e-9
		}
		start := math.Log10(min)
		step := (math.Log10(max) - start) / n
		var ticks []plot.Tick
		for i := 0.0; i <= n; i++ {
			y := math.Pow(10, start+i*step)
			ticks = append(ticks, plot.Tick{Value: y, Label: format(y)})
		}
		return ticks
	}
}

func main() {
	jsonFile := flag.String("jsonfile", "test-results.json", "Path to JSON file containing test sessions")
	outputPrefix := flag.String("out", "benchmark_graph", "Output graph image filename prefix")
	metricName := flag.String("metric", "ns", "Plotted value: ns (time per message) or throughput")
	sessionID := flag.String("session", "", "Only plot the session with this id")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	m, ok := metrics[*metricName]
	if !ok {
		logger.Error("unknown metric", "metric", *metricName)
		os.Exit(2)
	}

	data, err := os.ReadFile(*jsonFile)
	if err != nil {
		logger.Error("read results", "file", *jsonFile, "err", err)
		os.Exit(1)
	}
	var sessions []FullReport
	if err := json.Unmarshal(data, &sessions); err != nil {
		logger.Error("unmarshal results", "file", *jsonFile, "err", err)
		os.Exit(1)
	}

	groups := group(sessions, m, *sessionID)
	if len(groups) == 0 {
		logger.Error("nothing to plot", "file", *jsonFile, "session", *sessionID)
		os.Exit(1)
	}

	for key, g := range groups {
		p := newPlot(key, m, g)
		filename := fmt.Sprintf("%s_%s_%dcpu_%dslots.png", *outputPrefix, *metricName, key.cpus, key.capacity)
		if err := p.Save(12*vg.Inch, 9*vg.Inch, filename); err != nil {
			logger.Error("save plot", "file", filename, "err", err)
			continue
		}
		fmt.Printf("Graph for %d CPU(s), %d slots saved to %s\n", key.cpus, key.capacity, filename)
	}
}

func newPlot(key groupKey, m metric, g samples) *plot.Plot {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s (5%%-avg-min / Median / 5%%-avg-max) vs. Concurrency, %d CPU(s), %d slots",
		m.label, key.cpus, key.capacity)
	p.X.Label.Text = "NumProducers + NumConsumers"
	p.Y.Label.Text = m.label + " [log scale]"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = logTicks(648.0/30.0, m.format)

	// Dark theme.
	p.BackgroundColor = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	p.Title.TextStyle.Color = white
	p.X.Label.TextStyle.Color = white
	p.Y.Label.TextStyle.Color = white
	p.X.Color = white
	p.Y.Color = white
	p.X.Tick.Label.Color = white
	p.Y.Tick.Label.Color = white
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.TextStyle.Color = white

	p.Add(plotter.NewGrid())

	// Categorical X axis over the union of concurrency levels.
	levels := make(map[float64]struct{})
	for _, byConc := range g {
		for x := range byConc {
			levels[x] = struct{}{}
		}
	}
	var xs []float64
	for x := range levels {
		xs = append(xs, x)
	}
	sort.Float64s(xs)
	category := make(map[float64]float64, len(xs))
	ticks := categoryTicks{}
	for i, x := range xs {
		category[x] = float64(i)
		ticks.positions = append(ticks.positions, float64(i))
		ticks.labels = append(ticks.labels, strconv.FormatFloat(x, 'f', -1, 64))
	}
	p.X.Tick.Marker = ticks

	var names []string
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	colors := plotutil.SoftColors
	shapes := []draw.GlyphDrawer{
		draw.CircleGlyph{},
		draw.SquareGlyph{},
		draw.TriangleGlyph{},
		draw.CrossGlyph{},
		draw.PlusGlyph{},
	}

	// Shift each implementation a little so error bars do not overlap.
	const offsetRange = 0.4
	offsetStep := offsetRange / float64(len(names))
	startOffset := -offsetRange/2 + offsetStep/2

	for i, name := range names {
		stats := buildStats(g[name])
		if len(stats) == 0 {
			continue
		}
		for j := range stats {
			stats[j].x = category[stats[j].orig] + startOffset + float64(i)*offsetStep
		}
		sp := statsPoints(stats)
		c := colors[i%len(colors)]

		line, err := plotter.NewLine(sp)
		if err != nil {
			slog.Warn("line", "impl", name, "err", err)
			continue
		}
		line.Color = c

		points, err := plotter.NewScatter(sp)
		if err != nil {
			slog.Warn("scatter", "impl", name, "err", err)
			continue
		}
		points.GlyphStyle.Radius = vg.Points(5)
		points.Color = c
		points.Shape = shapes[i%len(shapes)]

		yErrBars, err := plotter.NewYErrorBars(sp)
		if err != nil {
			slog.Warn("error bars", "impl", name, "err", err)
			continue
		}
		yErrBars.Color = c

		p.Add(line, points, yErrBars)
		p.Legend.Add(name, line, points)
	}
	return p
}
