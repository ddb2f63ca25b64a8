package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/journal"
	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
	"github.com/fieldlink-iot/fieldlink-go/pkg/report"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// DefaultPollInterval paces the passive waits for link connect and
// teardown completion.
const DefaultPollInterval = 100 * time.Millisecond

// Controller errors.
var (
	// ErrLocked indicates a configuration change during a transition.
	ErrLocked = errors.New("mode transition in progress")

	// ErrActiveMode indicates a configuration change while a link is up.
	ErrActiveMode = errors.New("configuration change requires disabled mode")

	// ErrUnknownLink indicates no client is registered for the link kind.
	ErrUnknownLink = errors.New("no client for link kind")

	// ErrUnknownCategory indicates no task serves the producer category.
	ErrUnknownCategory = errors.New("no task for producer category")

	// ErrAborted indicates a StartLink was cancelled by StopLink.
	ErrAborted = errors.New("link start aborted")

	// ErrNotRunning indicates the controller worker is not started.
	ErrNotRunning = errors.New("controller not running")

	// ErrAlreadyRunning indicates a second Start without a Stop.
	ErrAlreadyRunning = errors.New("controller already running")

	// ErrInvalidPeriod indicates a non-positive sampling period.
	ErrInvalidPeriod = errors.New("invalid sampling period")
)

// Mode is the gateway aggregation mode: which wide-area link, if any,
// reports are flowing to.
type Mode uint8

const (
	// ModeDisabled means no link is up and all producers are suspended.
	ModeDisabled Mode = iota

	// ModeShortRange means reports flow over the short-range link.
	ModeShortRange

	// ModeCellular means reports flow over the cellular link.
	ModeCellular
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "DISABLED"
	case ModeShortRange:
		return "SHORT_RANGE"
	case ModeCellular:
		return "CELLULAR"
	default:
		return "UNKNOWN"
	}
}

// modeFor maps a link kind onto the mode it serves.
func modeFor(k link.Kind) Mode {
	if k == link.KindCellular {
		return ModeCellular
	}
	return ModeShortRange
}

// kindFor maps an active mode back onto its link kind.
func kindFor(m Mode) link.Kind {
	if m == ModeCellular {
		return link.KindCellular
	}
	return link.KindShortRange
}

// Task is one producer as the controller sees it: the sensor runners and
// the position acquirer both satisfy it.
type Task interface {
	Category() sensor.Category
	SetPeriod(time.Duration) error
	Suspend()
	Resume()
	Suspended() bool
	SetPublish(enabled bool)
	PublishEnabled() bool
}

// opKind selects a worker operation.
type opKind uint8

const (
	opStartLink opKind = iota
	opStopLink
)

// opRequest is one transition handed to the worker goroutine.
type opRequest struct {
	kind  opKind
	link  link.Kind
	ctx   context.Context
	reply chan error
}

// Controller owns mode state and serializes transitions.
type Controller struct {
	builder *report.Builder
	events  journal.Logger
	logger  *slog.Logger

	tasks   []Task
	clients map[link.Kind]link.Client

	// pollInterval paces passive waits; shortened in tests.
	pollInterval time.Duration

	// abort cancels an in-flight StartLink's connect wait.
	abort atomic.Bool

	mu           sync.Mutex
	mode         Mode
	locked       bool
	updatePeriod time.Duration

	ops     chan opRequest
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a controller over the given producers and link clients.
// events may be nil.
func New(builder *report.Builder, tasks []Task, clients []link.Client, events journal.Logger, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = journal.NoopLogger{}
	}
	byKind := make(map[link.Kind]link.Client, len(clients))
	for _, c := range clients {
		byKind[c.Kind()] = c
	}
	return &Controller{
		builder:      builder,
		events:       events,
		logger:       logger.With("component", "controller"),
		tasks:        tasks,
		clients:      byKind,
		pollInterval: DefaultPollInterval,
		mode:         ModeDisabled,
		updatePeriod: sensor.DefaultPeriod,
		ops:          make(chan opRequest),
	}
}

// Start launches the transition worker.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.stopCh = make(chan struct{})

	c.wg.Add(1)
	go c.worker(ctx, c.stopCh)
	return nil
}

// Stop terminates the worker. Any link left up is torn down first.
func (c *Controller) Stop(ctx context.Context) {
	if mode := c.Mode(); mode != ModeDisabled {
		_ = c.StopLink(ctx, kindFor(mode))
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	c.mu.Unlock()

	c.wg.Wait()
}

// Mode returns the current aggregation mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Locked reports whether a transition is in progress.
func (c *Controller) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// UpdatePeriod returns the shared sampling period.
func (c *Controller) UpdatePeriod() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatePeriod
}

// StartLink brings the given link up and routes reports over it. Safe to
// call for the already-active link (no-op success); switching from the
// other link stops it completely first. The result is returned
// synchronously once the transition settles.
func (c *Controller) StartLink(ctx context.Context, kind link.Kind) error {
	return c.submit(ctx, opRequest{kind: opStartLink, link: kind, ctx: ctx})
}

// StopLink tears the given link down and suspends all producers. It also
// cancels an in-flight StartLink, which then unwinds to Disabled.
func (c *Controller) StopLink(ctx context.Context, kind link.Kind) error {
	c.abort.Store(true)
	return c.submit(ctx, opRequest{kind: opStopLink, link: kind, ctx: ctx})
}

// submit hands one operation to the worker and waits for its result.
func (c *Controller) submit(ctx context.Context, op opRequest) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	stopCh := c.stopCh
	c.mu.Unlock()

	op.reply = make(chan error, 1)
	select {
	case c.ops <- op:
	case <-stopCh:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) worker(ctx context.Context, stopCh <-chan struct{}) {
	defer c.wg.Done()

	for {
		select {
		case op := <-c.ops:
			var err error
			switch op.kind {
			case opStartLink:
				err = c.doStartLink(op.ctx, op.link)
			case opStopLink:
				err = c.doStopLink(op.ctx, op.link)
				c.abort.Store(false)
			}
			op.reply <- err
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// lock raises the transition lock and returns a restore function carrying
// the previous value, so nested transitions (the StopLink inside a link
// switch) compose.
func (c *Controller) lock() func() {
	c.mu.Lock()
	prev := c.locked
	c.locked = true
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.locked = prev
		c.mu.Unlock()
	}
}

// doStartLink runs on the worker goroutine.
func (c *Controller) doStartLink(ctx context.Context, kind link.Kind) error {
	c.mu.Lock()
	if c.mode == modeFor(kind) {
		c.mu.Unlock()
		return nil
	}
	current := c.mode
	c.mu.Unlock()

	unlock := c.lock()
	defer unlock()

	// Switching links: the old one is fully stopped before the new one
	// comes up, so the system never straddles two links.
	if current != ModeDisabled {
		if err := c.doStopLink(ctx, kindFor(current)); err != nil {
			return err
		}
	}

	client, ok := c.clients[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLink, kind)
	}

	// Propagate the shared sampling period before anything starts ticking.
	// The position producer keeps its own update/timeout pair.
	c.mu.Lock()
	period := c.updatePeriod
	c.mu.Unlock()
	for _, t := range c.tasks {
		if t.Category() == sensor.CategoryPosition {
			continue
		}
		if err := t.SetPeriod(period); err != nil {
			c.logger.Warn("period propagation failed", "producer", t.Category(), "err", err)
		}
	}
	c.builder.SetMaxEncoded(client.MaxMessageSize())

	c.logger.Info("starting link", "link", kind)
	if err := client.Open(ctx); err != nil {
		c.unwind(ctx, kind)
		return fmt.Errorf("open %s: %w", kind, err)
	}

	if err := c.awaitConnected(ctx, client); err != nil {
		c.unwind(ctx, kind)
		return err
	}

	for _, t := range c.tasks {
		t.SetPublish(true)
		t.Resume()
	}

	c.mu.Lock()
	c.mode = modeFor(kind)
	c.mu.Unlock()

	c.events.Record(journal.Event{
		Timestamp: time.Now(),
		Category:  journal.CategoryLink,
		Outcome:   journal.OutcomeConnected,
		Link:      kind.String(),
	})
	c.logger.Info("link up", "link", kind)
	return nil
}

// awaitConnected polls the client until it reports Connected, reports a
// failure, or the start is aborted. The wait is bounded by the client's
// own connect policy, not by the controller.
func (c *Controller) awaitConnected(ctx context.Context, client link.Client) error {
	for {
		if client.Status() == link.StatusConnected {
			return nil
		}
		if err := client.LastResult(); err != nil {
			return fmt.Errorf("link connect: %w", err)
		}
		if c.abort.Load() {
			return ErrAborted
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// unwind tears down after a failed start, restoring Disabled.
func (c *Controller) unwind(ctx context.Context, kind link.Kind) {
	if err := c.doStopLink(ctx, kind); err != nil {
		c.logger.Warn("unwind failed", "link", kind, "err", err)
	}
}

// doStopLink runs on the worker goroutine, directly or nested inside
// doStartLink.
func (c *Controller) doStopLink(ctx context.Context, kind link.Kind) error {
	unlock := c.lock()
	defer unlock()

	client, ok := c.clients[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLink, kind)
	}

	c.logger.Info("stopping link", "link", kind)
	if err := client.Close(ctx); err != nil {
		c.logger.Warn("link close failed", "link", kind, "err", err)
	}

	// Wait out the teardown; bounded by the client.
	for client.Status() != link.StatusClosed {
		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, t := range c.tasks {
		t.SetPublish(false)
		t.Suspend()
	}

	c.mu.Lock()
	c.mode = ModeDisabled
	c.mu.Unlock()

	c.events.Record(journal.Event{
		Timestamp: time.Now(),
		Category:  journal.CategoryLink,
		Outcome:   journal.OutcomeClosed,
		Link:      kind.String(),
	})
	return nil
}

// guard rejects configuration changes during a transition or while a link
// is active. Caller holds the lock.
func (c *Controller) guardLocked() error {
	if c.locked {
		return ErrLocked
	}
	if c.mode != ModeDisabled {
		return ErrActiveMode
	}
	return nil
}

// SetUpdatePeriod changes the shared sampling period for the bus
// producers. The position producer runs on its own update/timeout pair
// and is not affected. Only allowed while disabled and not
// mid-transition.
func (c *Controller) SetUpdatePeriod(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidPeriod
	}

	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.updatePeriod = d
	tasks := c.tasks
	c.mu.Unlock()

	for _, t := range tasks {
		if t.Category() == sensor.CategoryPosition {
			continue
		}
		if err := t.SetPeriod(d); err != nil {
			return fmt.Errorf("producer %s: %w", t.Category(), err)
		}
	}
	return nil
}

// SetAggregation selects pooled rounds or per-sensor messages. Only
// allowed while disabled and not mid-transition.
func (c *Controller) SetAggregation(enabled bool) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	c.builder.SetAggregate(enabled)
	return nil
}

// SetProducerPublish toggles one producer's publish gate from the command
// surface. Rejected mid-transition or while a link is active; the
// controller's own internal toggles bypass this guard.
func (c *Controller) SetProducerPublish(category sensor.Category, enabled bool) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	t := c.task(category)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	t.SetPublish(enabled)
	return nil
}

// SetProducerSuspended pauses or resumes one producer from the command
// surface, under the same state guard as every external toggle.
func (c *Controller) SetProducerSuspended(category sensor.Category, suspended bool) error {
	c.mu.Lock()
	if err := c.guardLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	t := c.task(category)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if suspended {
		t.Suspend()
	} else {
		t.Resume()
	}
	return nil
}

// task finds the task serving a category.
func (c *Controller) task(category sensor.Category) Task {
	for _, t := range c.tasks {
		if t.Category() == category {
			return t
		}
	}
	return nil
}
