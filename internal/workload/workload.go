// Package workload drives a ring queue the way a job system would: producers
// push lots of products, consumers sleep on a condition variable until the
// queue probably has work, and shutdown lets consumers drain what is left
// before the queue is destroyed.
package workload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastrand"

	"github.com/i5heu/GoRingQueue/pkg/ringqueue"
)

// MaxProducts is the number of slots in the job buffer.
const MaxProducts = 64

// Product is one unit of work. Value is how many Units a consumer spends on it.
type Product struct {
	LotNo int32
	Value int32
}

// Mode selects how producers and consumers use the job mutex.
type Mode int

const (
	// Exclusive producers push a whole lot while holding the job mutex, and
	// consumers drain while holding it.
	Exclusive Mode = iota
	// Shared producers push without the mutex; consumers only wait under it
	// and drain after releasing it.
	Shared
)

func (m Mode) String() string {
	switch m {
	case Exclusive:
		return "exclusive"
	case Shared:
		return "shared"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "exclusive":
		return Exclusive, nil
	case "shared":
		return Shared, nil
	}
	return 0, fmt.Errorf("workload: unknown mode %q", s)
}

type Config struct {
	Mode        Mode
	Consumers   int
	Lots        int
	ItemsPerLot int
	// Unit is the work time per Product.Value. Zero means no work.
	Unit time.Duration
	// Jitter adds a random extra duration in [0, Jitter) per product.
	Jitter time.Duration
	Wait   ringqueue.WaitStrategy
	Logger *slog.Logger
}

// DefaultConfig is three consumers, three lots of ten products and one
// millisecond per value unit.
func DefaultConfig() Config {
	return Config{
		Mode:        Exclusive,
		Consumers:   3,
		Lots:        3,
		ItemsPerLot: 10,
		Unit:        time.Millisecond,
	}
}

// Stats is the outcome of one Run.
type Stats struct {
	RunID      string
	Mode       Mode
	Pushed     int64
	PushFailed int64
	Popped     []int64 // per consumer
	Elapsed    time.Duration
}

// TotalPopped sums Popped.
func (s Stats) TotalPopped() int64 {
	var n int64
	for _, p := range s.Popped {
		n += p
	}
	return n
}

// System owns the job buffer and the queue mapped onto it.
type System struct {
	cfg    Config
	log    *slog.Logger
	buffer [MaxProducts]ringqueue.Slot[Product]
	job    *ringqueue.RingQueue[Product]

	mu   sync.Mutex
	cond *sync.Cond
	done atomic.Bool

	pushed     atomic.Int64
	pushFailed atomic.Int64
	popped     []atomic.Int64
}

// NewSystem creates the job queue over the system's own buffer.
func NewSystem(cfg Config) (*System, error) {
	if cfg.Consumers < 1 {
		return nil, fmt.Errorf("workload: need at least one consumer, got %d", cfg.Consumers)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &System{
		cfg:    cfg,
		log:    cfg.Logger,
		popped: make([]atomic.Int64, cfg.Consumers),
	}
	s.cond = sync.NewCond(&s.mu)
	s.job = ringqueue.New(ringqueue.Config[Product]{
		Wait: cfg.Wait,
		Discard: func(p Product) {
			s.log.Warn("product dropped on shutdown", "lot", p.LotNo, "value", p.Value)
		},
	})
	if err := s.job.Create(s.buffer[:]); err != nil {
		return nil, fmt.Errorf("workload: create job queue: %w", err)
	}
	return s, nil
}

// Close destroys the job queue. Products still queued are dropped.
func (s *System) Close() error {
	return s.job.Destroy()
}

// Count is the approximate number of queued products.
func (s *System) Count() uint32 {
	return s.job.Count()
}

func (s *System) ready() bool {
	return s.done.Load() || s.job.Count() > 0
}

// produce pushes one lot, then pauses for ItemsPerLot units.
func (s *System) produce(lotNo int32) {
	s.log.Debug("producer: start", "lot", lotNo, "num", s.cfg.ItemsPerLot)
	for number := 0; number < s.cfg.ItemsPerLot; number++ {
		p := Product{LotNo: lotNo, Value: int32(number)}
		if err := s.job.Push(p); err != nil {
			// A full queue is load shedding, not an error.
			s.pushFailed.Add(1)
			s.log.Debug("producer: push failed", "lot", lotNo, "num", number, "result", ringqueue.ResultOf(err))
			continue
		}
		s.pushed.Add(1)
	}
	if d := time.Duration(s.cfg.ItemsPerLot) * s.cfg.Unit; d > 0 {
		time.Sleep(d)
	}
	s.log.Debug("producer: finish", "lot", lotNo, "num", s.cfg.ItemsPerLot)
}

func (s *System) produceExclusive(lotNo int32) {
	s.mu.Lock()
	s.produce(lotNo)
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *System) produceShared(lotNo int32) {
	s.produce(lotNo)
	s.cond.Broadcast()
}

// drain pops until the queue reports empty.
func (s *System) drain(worker int) {
	s.log.Debug("consumer: wakeup", "worker", worker)
	var item Product
	for s.job.Pop(&item) == nil {
		s.popped[worker].Add(1)
		s.log.Debug("consumer: item", "worker", worker, "lot", item.LotNo, "value", item.Value)
		s.work(item)
	}
	s.log.Debug("consumer: sleep", "worker", worker)
}

func (s *System) work(item Product) {
	d := time.Duration(item.Value)*s.cfg.Unit + jitter(s.cfg.Jitter)
	if d > 0 {
		time.Sleep(d)
	}
}

// jitter returns a random duration in [0, limit), with limit clamped to the
// range fastrand can draw from.
func jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	if limit > math.MaxUint32 {
		limit = math.MaxUint32
	}
	return time.Duration(fastrand.Uint32n(uint32(limit)))
}

func (s *System) consumeExclusive(worker int) {
	s.mu.Lock()
	for !s.ready() {
		s.cond.Wait()
	}
	s.drain(worker)
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *System) consumeShared(worker int) {
	s.mu.Lock()
	for !s.ready() {
		s.cond.Wait()
	}
	s.mu.Unlock()
	s.cond.Broadcast()

	s.drain(worker)
}

func (s *System) shutdown() {
	s.mu.Lock()
	s.done.Store(true)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Run starts the consumers, produces every lot, waits for the queue to
// empty, then stops the consumers and destroys the queue.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	s, err := NewSystem(cfg)
	if err != nil {
		return Stats{}, err
	}
	runID := uuid.NewString()
	s.log = s.log.With("run", runID, "mode", cfg.Mode)

	produce, consume := s.produceExclusive, s.consumeExclusive
	if cfg.Mode == Shared {
		produce, consume = s.produceShared, s.consumeShared
	}

	start := time.Now()
	s.log.Info("run: start", "consumers", cfg.Consumers, "lots", cfg.Lots, "items_per_lot", cfg.ItemsPerLot)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Consumers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for !s.done.Load() {
				consume(worker)
			}
		}(i)
	}

	var runErr error
	for lot := 0; lot < cfg.Lots; lot++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		produce(int32(lot))
	}

	for runErr == nil && s.Count() > 0 {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}

	s.shutdown()
	wg.Wait()

	if err := s.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	st := Stats{
		RunID:      runID,
		Mode:       cfg.Mode,
		Pushed:     s.pushed.Load(),
		PushFailed: s.pushFailed.Load(),
		Popped:     make([]int64, cfg.Consumers),
		Elapsed:    time.Since(start),
	}
	for i := range s.popped {
		st.Popped[i] = s.popped[i].Load()
	}
	s.log.Info("run: done", "pushed", st.Pushed, "push_failed", st.PushFailed, "popped", st.TotalPopped(), "elapsed", st.Elapsed)
	return st, runErr
}
