package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spreadwatch/internal/exchange"
	"spreadwatch/internal/spread"
)

// ErrRunning is returned when a cycle would overlap one already in flight.
var ErrRunning = errors.New("scheduler: update loop already running")

// MinInterval is the shortest allowed pause between cycles. Exchanges rate limit
// public endpoints well above this.
const MinInterval = 5 * time.Second

// State of the update loop.
type State int

const (
	Idle State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options tune scheduler behaviour.
type Options struct {
	// Interval is the pause between the end of one cycle and the start of the next.
	Interval time.Duration
	// RunFor stops the loop automatically once elapsed. Zero runs until Stop.
	RunFor time.Duration
	// MaxCycles stops the loop after that many cycles. Zero means unlimited.
	MaxCycles int
}

// Scheduler refreshes every source, computes pairwise spreads and hands the
// snapshot to each action, once per interval.
type Scheduler struct {
	opts    Options
	sources []exchange.Source
	actions []Action
	pair    exchange.CurrencyPair
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	state  State
	manual bool
	cancel context.CancelFunc
}

// New validates the configuration and constructs a Scheduler.
func New(opts Options, sources []exchange.Source, actions []Action, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval < MinInterval {
		return nil, fmt.Errorf("%w: update interval %s is below the %s minimum", exchange.ErrConfiguration, opts.Interval, MinInterval)
	}
	if opts.RunFor < 0 || opts.MaxCycles < 0 {
		return nil, fmt.Errorf("%w: run_for and max_cycles cannot be negative", exchange.ErrConfiguration)
	}

	var pair exchange.CurrencyPair
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		if i == 0 {
			pair = src.CurrencyPair()
		} else if src.CurrencyPair() != pair {
			return nil, fmt.Errorf("%w: exchange %s quotes %s, expected %s", exchange.ErrConfiguration, src.Name(), src.CurrencyPair(), pair)
		}
		if _, dup := seen[src.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate exchange name %q", exchange.ErrConfiguration, src.Name())
		}
		seen[src.Name()] = struct{}{}
	}

	return &Scheduler{
		opts:    opts,
		sources: sources,
		actions: actions,
		pair:    pair,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}, nil
}

// State returns the current loop state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start runs cycles until Stop, RunFor, MaxCycles or ctx ends the loop. The first
// cycle begins immediately. Calling Start while a loop is active returns nil at once.
// A cycle failure ends the loop and is returned.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Running || s.state == Stopping {
		s.mu.Unlock()
		s.logger.Debug().Msg("start ignored; update loop already active")
		return nil
	}
	if s.manual {
		s.mu.Unlock()
		return ErrRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Running
	s.mu.Unlock()

	var timer *time.Timer
	if s.opts.RunFor > 0 {
		timer = time.AfterFunc(s.opts.RunFor, s.Stop)
	}

	s.logger.Info().
		Dur("interval", s.opts.Interval).
		Dur("run_for", s.opts.RunFor).
		Int("max_cycles", s.opts.MaxCycles).
		Int("exchanges", len(s.sources)).
		Str("currency_pair", s.pair.String()).
		Msg("update loop started")

	err := s.loop(runCtx)

	if timer != nil {
		timer.Stop()
	}
	s.mu.Lock()
	s.state = Stopped
	s.cancel = nil
	s.mu.Unlock()
	cancel()

	if err != nil {
		s.logger.Error().Err(err).Msg("update loop terminated")
		return err
	}
	s.logger.Info().Msg("update loop stopped")
	return nil
}

// Stop asks the running loop to finish. The cycle in flight completes its action
// dispatch; no new cycle starts. Stop is a no-op unless the loop is running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return
	}
	s.state = Stopping
	s.cancel()
}

func (s *Scheduler) loop(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := s.runCycle(ctx); err != nil {
			return err
		}

		if s.opts.MaxCycles > 0 && cycle >= s.opts.MaxCycles {
			s.logger.Debug().Int("cycles", cycle).Msg("max cycles reached")
			return nil
		}

		timer := time.NewTimer(s.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunCycle executes a single refresh, compute and dispatch pass outside the loop.
// It fails with ErrRunning while Start is active.
func (s *Scheduler) RunCycle(ctx context.Context) (spread.Snapshot, error) {
	s.mu.Lock()
	if s.state == Running || s.state == Stopping || s.manual {
		s.mu.Unlock()
		return spread.Snapshot{}, ErrRunning
	}
	s.manual = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.manual = false
		s.mu.Unlock()
	}()
	return s.runCycle(ctx)
}

func (s *Scheduler) runCycle(ctx context.Context) (spread.Snapshot, error) {
	// Stop must not tear down a cycle midway, so the work itself ignores cancellation.
	work := context.WithoutCancel(ctx)

	for _, src := range s.sources {
		if err := src.UpdatePrices(work); err != nil {
			return spread.Snapshot{}, fmt.Errorf("update %s prices: %w", src.Name(), err)
		}
	}
	if ctx.Err() != nil {
		s.logger.Debug().Msg("stop requested during refresh; skipping dispatch")
		return spread.Snapshot{}, nil
	}

	quotes := make([]exchange.Quote, 0, len(s.sources))
	for _, src := range s.sources {
		q := src.Quote()
		if !q.HasPrices() {
			s.logger.Warn().Str("exchange", src.Name()).Msg("no prices yet; exchange left out of this cycle")
			continue
		}
		quotes = append(quotes, q)
	}

	spreads, err := spread.Pairwise(quotes)
	if err != nil {
		return spread.Snapshot{}, fmt.Errorf("calculate spreads: %w", err)
	}

	snap := spread.Snapshot{
		ID:      uuid.New(),
		Time:    s.now().UTC(),
		Pair:    s.pair,
		Quotes:  quotes,
		Spreads: spreads,
	}

	s.logger.Debug().Str("cycle_id", snap.ID.String()).Int("spreads", len(spreads)).Msg("dispatching cycle")

	for _, action := range s.actions {
		if err := action.Run(work, snap); err != nil {
			return snap, fmt.Errorf("action %s: %w", action.Name(), err)
		}
	}
	return snap, nil
}
