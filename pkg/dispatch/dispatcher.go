package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/journal"
	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
	"github.com/fieldlink-iot/fieldlink-go/pkg/report"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// DefaultQueueDepth sizes the shared packet channel. Producers block on a
// full queue rather than dropping, which back-pressures their cadence.
const DefaultQueueDepth = 16

// ErrAlreadyRunning indicates Run was called twice.
var ErrAlreadyRunning = errors.New("dispatcher already running")

// Dispatcher serializes rounds and publishes finished documents.
type Dispatcher struct {
	builder *report.Builder
	logger  *slog.Logger
	events  journal.Logger

	// links in priority order: the short-range link first, so it wins if
	// both abnormally report Connected.
	links []link.Client

	in chan sensor.Packet

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a dispatcher over the given builder and links. links must be
// ordered by publish priority. events may be nil.
func New(builder *report.Builder, links []link.Client, events journal.Logger, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = journal.NoopLogger{}
	}
	return &Dispatcher{
		builder: builder,
		links:   links,
		events:  events,
		logger:  logger.With("component", "dispatcher"),
		in:      make(chan sensor.Packet, DefaultQueueDepth),
	}
}

// In returns the packet channel producers deliver into.
func (d *Dispatcher) In() chan<- sensor.Packet {
	return d.in
}

// Run starts the consumer goroutine.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrAlreadyRunning
	}
	d.running = true
	d.stopCh = make(chan struct{})

	d.wg.Add(1)
	go d.loop(ctx, d.stopCh)
	return nil
}

// Stop terminates the consumer goroutine and waits for it to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer d.wg.Done()

	for {
		select {
		case pkt := <-d.in:
			d.Send(pkt)
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Send folds one packet into the round and publishes if it completed the
// round. Exported for direct use in tests and single-threaded callers;
// concurrent producers must go through In.
func (d *Dispatcher) Send(pkt sensor.Packet) {
	outcome, err := d.builder.Submit(pkt)
	if err != nil {
		if errors.Is(err, report.ErrEncodeOverflow) {
			// The round cannot fit the link; abort it entirely.
			d.logger.Error("round aborted", "err", err)
			d.events.Record(journal.Event{
				Timestamp: time.Now(),
				Category:  journal.CategoryRound,
				Outcome:   journal.OutcomeAborted,
				Detail:    err.Error(),
			})
			d.builder.Reset()
			return
		}
		// Invalid packet; the round state is untouched.
		d.logger.Warn("packet rejected", "category", pkt.Category, "err", err)
		return
	}
	if outcome != report.Complete {
		return
	}

	topic, payload, err := d.builder.Document()
	if err != nil {
		d.logger.Error("no document after complete round", "err", err)
		d.builder.Reset()
		return
	}

	d.publish(topic, payload)
	d.builder.Reset()
}

// publish hands the document to the connected link, if any.
func (d *Dispatcher) publish(topic report.Topic, payload []byte) {
	client := d.connected()
	if client == nil {
		d.logger.Warn("no link connected, dropping round", "topic", topic.Name)
		d.events.Record(journal.Event{
			Timestamp: time.Now(),
			Category:  journal.CategoryRound,
			Outcome:   journal.OutcomeDropped,
			Topic:     topic.Name,
			Size:      len(payload),
		})
		return
	}

	if err := client.Publish(topic.Name, topic.Alias, payload, 0, false); err != nil {
		d.logger.Warn("publish failed", "link", client.Kind(), "topic", topic.Name, "err", err)
		d.events.Record(journal.Event{
			Timestamp: time.Now(),
			Category:  journal.CategoryRound,
			Outcome:   journal.OutcomeDropped,
			Link:      client.Kind().String(),
			Topic:     topic.Name,
			Size:      len(payload),
			Detail:    err.Error(),
		})
		return
	}

	d.logger.Debug("round published", "link", client.Kind(), "topic", topic.Name, "bytes", len(payload))
	d.events.Record(journal.Event{
		Timestamp: time.Now(),
		Category:  journal.CategoryRound,
		Outcome:   journal.OutcomePublished,
		Link:      client.Kind().String(),
		Topic:     topic.Name,
		Size:      len(payload),
	})
}

// connected returns the highest-priority connected link, or nil.
func (d *Dispatcher) connected() link.Client {
	for _, c := range d.links {
		if c.Status() == link.StatusConnected {
			return c
		}
	}
	return nil
}
