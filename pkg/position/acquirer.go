package position

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/journal"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// Default acquisition periods. The timeout must stay below the update
// period so a request always resolves before the next one is due.
const (
	DefaultUpdatePeriod  = 120 * time.Second
	DefaultTimeoutPeriod = 90 * time.Second
)

// Acquisition errors.
var (
	// ErrInvalidPeriods indicates timeoutPeriod >= updatePeriod or a
	// non-positive period.
	ErrInvalidPeriods = errors.New("timeout period must be shorter than update period")

	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("acquirer already running")

	// ErrRequestFailed indicates the driver rejected the request
	// synchronously. A ReadFailed packet has already been emitted.
	ErrRequestFailed = errors.New("position request failed to issue")
)

// State is the acquisition request state.
type State uint8

const (
	// StateIdle means no request has ever been issued.
	StateIdle State = iota

	// StatePending means a request is outstanding, awaiting callback or timeout.
	StatePending

	// StateObtained means the result arrived and awaits finalize.
	StateObtained

	// StateCompleted means the last request was finalized; the next Begin
	// may proceed.
	StateCompleted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePending:
		return "PENDING"
	case StateObtained:
		return "OBTAINED"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

const displayName = "GNSS"

// Acquirer drives the asynchronous position request protocol and emits one
// sensor packet per cycle, like any other producer. It runs as two
// cooperating phases: the cadence loop issues Begin every update period,
// and the finalize phase waits for the callback or the timeout to wake it.
type Acquirer struct {
	requester Requester
	out       chan<- sensor.Packet
	events    journal.Logger
	logger    *slog.Logger

	publish atomic.Bool

	mu            sync.Mutex
	state         State
	updatePeriod  time.Duration
	timeoutPeriod time.Duration
	fix           *Fix
	fixErr        error
	timer         *time.Timer

	// gen invalidates callbacks and timer fires from superseded requests.
	gen uint64

	// releaseDone is closed once the current request's Release returns;
	// the next Begin blocks on it.
	releaseDone chan struct{}

	// wakeCh signals the finalize phase. Buffered so the callback and the
	// timer never block.
	wakeCh chan struct{}

	// Cadence loop state.
	suspended bool
	running   bool
	kickCh    chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewAcquirer creates an acquirer delivering packets to out. Acquisition
// outcomes are recorded to events; nil discards them. The cadence starts
// suspended with publishing disabled, like every producer runner.
func NewAcquirer(r Requester, out chan<- sensor.Packet, events journal.Logger, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = journal.NoopLogger{}
	}
	return &Acquirer{
		requester:     r,
		out:           out,
		events:        events,
		logger:        logger.With("sensor", displayName),
		state:         StateIdle,
		updatePeriod:  DefaultUpdatePeriod,
		timeoutPeriod: DefaultTimeoutPeriod,
		wakeCh:        make(chan struct{}, 1),
		kickCh:        make(chan struct{}, 1),
		suspended:     true,
	}
}

// Category returns the producer category.
func (a *Acquirer) Category() sensor.Category {
	return sensor.CategoryPosition
}

// State returns the current request state.
func (a *Acquirer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetPeriods changes both acquisition periods. timeout must be shorter
// than update. A change while a request is in flight cancels it through an
// immediate finalize before the new values take effect.
func (a *Acquirer) SetPeriods(update, timeout time.Duration) error {
	if update <= 0 || timeout <= 0 || timeout >= update {
		return ErrInvalidPeriods
	}

	a.mu.Lock()
	inFlight := a.state == StatePending || a.state == StateObtained
	a.mu.Unlock()
	if inFlight {
		a.Finalize()
	}

	a.mu.Lock()
	a.updatePeriod = update
	a.timeoutPeriod = timeout
	a.mu.Unlock()
	a.kick()
	return nil
}

// SetPeriod changes the update period, keeping the configured timeout.
// Satisfies the shared producer task surface used by the mode controller.
func (a *Acquirer) SetPeriod(update time.Duration) error {
	a.mu.Lock()
	timeout := a.timeoutPeriod
	a.mu.Unlock()
	return a.SetPeriods(update, timeout)
}

// Periods returns the current update and timeout periods.
func (a *Acquirer) Periods() (update, timeout time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updatePeriod, a.timeoutPeriod
}

// SetPublish opens or closes the publish gate.
func (a *Acquirer) SetPublish(enabled bool) {
	a.publish.Store(enabled)
}

// PublishEnabled reports the state of the publish gate.
func (a *Acquirer) PublishEnabled() bool {
	return a.publish.Load()
}

// Begin issues a new asynchronous request. A stale in-flight request is
// forcibly finalized first, so at most one request is ever outstanding.
// On a synchronous issue failure a ReadFailed packet is emitted
// immediately, no timer is armed, and ErrRequestFailed is returned.
func (a *Acquirer) Begin() error {
	a.mu.Lock()
	if a.state == StatePending || a.state == StateObtained {
		a.mu.Unlock()
		a.Finalize()
		a.mu.Lock()
	}

	// The previous request's Release must be observed before a new
	// request touches the driver.
	releaseDone := a.releaseDone
	a.mu.Unlock()
	if releaseDone != nil {
		<-releaseDone
	}

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.fix = nil
	a.fixErr = nil
	a.state = StatePending
	timeout := a.timeoutPeriod
	a.mu.Unlock()

	// Start the wait phase clean: a wake left over from a forced finalize
	// must not resolve this request early.
	select {
	case <-a.wakeCh:
	default:
	}

	// Issued outside the lock: drivers may invoke the callback
	// synchronously.
	if err := a.requester.Request(func(fix *Fix, err error) {
		a.Callback(gen, fix, err)
	}); err != nil {
		a.mu.Lock()
		if a.gen == gen {
			a.state = StateCompleted
		}
		a.mu.Unlock()

		a.logger.Warn("request issue failed", "err", err)
		a.emit(sensor.ErrorPacket(sensor.CategoryPosition, displayName, sensor.DataReadFailed))
		return ErrRequestFailed
	}

	a.mu.Lock()
	if a.gen == gen && (a.state == StatePending || a.state == StateObtained) {
		if a.state == StatePending {
			a.timer = time.AfterFunc(timeout, func() {
				a.timeoutFired(gen)
			})
		}
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()

	// A concurrent finalize superseded this request between issue and
	// timer arming; balance the driver session it never got to release.
	a.requester.Release()
	return nil
}

// Callback delivers the driver's result for request generation gen. Only
// the matching Pending request is affected; late or duplicate callbacks
// are ignored.
func (a *Acquirer) Callback(gen uint64, fix *Fix, err error) {
	a.mu.Lock()
	if a.gen != gen || a.state != StatePending {
		a.mu.Unlock()
		return
	}
	a.fix = fix
	a.fixErr = err
	a.state = StateObtained
	a.mu.Unlock()

	a.wake()
}

// timeoutFired wakes the finalize phase with no result.
func (a *Acquirer) timeoutFired(gen uint64) {
	a.mu.Lock()
	stillPending := a.gen == gen && a.state == StatePending
	a.mu.Unlock()

	if stillPending {
		a.wake()
	}
}

// Finalize resolves the outstanding request: it disarms the timer, emits
// the stored fix or a Timeout packet, releases the driver resource, and
// moves to Completed. Calling it with no outstanding request is a no-op,
// which makes concurrent forced finalizes safe.
func (a *Acquirer) Finalize() {
	a.mu.Lock()
	if a.state != StatePending && a.state != StateObtained {
		a.mu.Unlock()
		return
	}

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}

	var pkt sensor.Packet
	switch {
	case a.state == StateObtained && a.fix != nil:
		pkt = sensor.Packet{
			Category:     sensor.CategoryPosition,
			DisplayName:  displayName,
			Measurements: a.fix.Measurements(),
		}
	case a.state == StateObtained:
		// Driver reported an error through the callback.
		pkt = sensor.ErrorPacket(sensor.CategoryPosition, displayName, sensor.DataReadFailed)
	default:
		pkt = sensor.ErrorPacket(sensor.CategoryPosition, displayName, sensor.DataTimeout)
	}

	// Invalidate any late callback or timer fire for this request.
	a.gen++
	a.fix = nil
	a.fixErr = nil
	a.state = StateCompleted

	releaseDone := make(chan struct{})
	a.releaseDone = releaseDone
	a.mu.Unlock()

	// A cycle may be blocked waiting for this request; wake it so its own
	// Finalize call can observe Completed and no-op.
	a.wake()

	a.emit(pkt)
	a.requester.Release()
	close(releaseDone)
}

// wake signals the finalize phase.
func (a *Acquirer) wake() {
	select {
	case a.wakeCh <- struct{}{}:
	default:
	}
}

// emit records the acquisition outcome and forwards the packet through
// the publish gate.
func (a *Acquirer) emit(pkt sensor.Packet) {
	outcome := journal.OutcomeFix
	if pkt.Err != sensor.DataOK {
		outcome = pkt.Err.Code()
	}
	a.events.Record(journal.Event{
		Timestamp: time.Now(),
		Category:  journal.CategoryPosition,
		Outcome:   outcome,
	})

	if !a.publish.Load() {
		return
	}
	if pkt.Err != sensor.DataOK {
		a.logger.Warn("acquisition failed", "code", pkt.Err.Code())
	}

	a.mu.Lock()
	stopCh := a.stopCh
	a.mu.Unlock()

	if stopCh == nil {
		// Not running: deliver best-effort without blocking forever.
		select {
		case a.out <- pkt:
		default:
		}
		return
	}
	select {
	case a.out <- pkt:
	case <-stopCh:
	}
}
