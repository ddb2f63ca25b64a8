package sensor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the sampling period used when none is configured.
const DefaultPeriod = 60 * time.Second

// Runner errors.
var (
	ErrAlreadyRunning = errors.New("runner already running")
	ErrInvalidPeriod  = errors.New("invalid sampling period")
)

// Runner drives one Producer on a periodic cadence and delivers the
// resulting packets into the shared dispatch channel. All producers use the
// same Runner; only the category and the Sample implementation differ.
//
// A runner starts suspended with publishing disabled. The mode controller
// resumes it and opens the publish gate once a link session is up.
type Runner struct {
	category Category
	producer Producer
	out      chan<- Packet
	logger   *slog.Logger

	// publish gates packet delivery without stopping the cadence.
	publish atomic.Bool

	mu        sync.Mutex
	period    time.Duration
	suspended bool
	running   bool
	wake      chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewRunner creates a runner for the given producer. Packets are sent to
// out, which the dispatcher consumes.
func NewRunner(c Category, p Producer, out chan<- Packet, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		category:  c,
		producer:  p,
		out:       out,
		logger:    logger.With("sensor", c.String()),
		period:    DefaultPeriod,
		suspended: true,
		wake:      make(chan struct{}, 1),
	}
}

// Category returns the runner's producer category.
func (r *Runner) Category() Category {
	return r.category
}

// Start launches the cadence loop. The loop idles while suspended.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}
	r.running = true
	r.stopCh = make(chan struct{})

	r.wg.Add(1)
	go r.loop(ctx, r.stopCh)
	return nil
}

// Stop terminates the cadence loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
}

// SetPeriod changes the sampling period. Takes effect on the next tick.
func (r *Runner) SetPeriod(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidPeriod
	}
	r.mu.Lock()
	r.period = d
	r.mu.Unlock()
	r.kick()
	return nil
}

// Period returns the current sampling period.
func (r *Runner) Period() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.period
}

// Suspend pauses the cadence without tearing the loop down.
func (r *Runner) Suspend() {
	r.mu.Lock()
	r.suspended = true
	r.mu.Unlock()
	r.kick()
}

// Resume restarts a suspended cadence.
func (r *Runner) Resume() {
	r.mu.Lock()
	r.suspended = false
	r.mu.Unlock()
	r.kick()
}

// Suspended reports whether the cadence is paused.
func (r *Runner) Suspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

// SetPublish opens or closes the publish gate. While closed, samples are
// still taken on cadence but their packets are discarded.
func (r *Runner) SetPublish(enabled bool) {
	r.publish.Store(enabled)
}

// PublishEnabled reports the state of the publish gate.
func (r *Runner) PublishEnabled() bool {
	return r.publish.Load()
}

// kick wakes the loop so it re-reads period/suspension state.
func (r *Runner) kick() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		suspended := r.suspended
		period := r.period
		r.mu.Unlock()

		if suspended {
			select {
			case <-r.wake:
				continue
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		timer := time.NewTimer(period)
		select {
		case <-timer.C:
			r.tick(ctx, stopCh)
		case <-r.wake:
			timer.Stop()
		case <-stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// tick samples the producer once and forwards the packet if publishing.
func (r *Runner) tick(ctx context.Context, stopCh <-chan struct{}) {
	measurements, err := r.producer.Sample(ctx)

	pkt := Packet{
		Category:    r.category,
		DisplayName: r.producer.DisplayName(),
		Err:         ClassifyError(err),
	}
	if pkt.Err == DataOK {
		pkt.Measurements = measurements
	} else {
		r.logger.Warn("sample failed", "err", err, "code", pkt.Err.Code())
	}

	if !r.publish.Load() {
		return
	}

	select {
	case r.out <- pkt:
	case <-stopCh:
	case <-ctx.Done():
	}
}
