package simulated

import (
	"errors"
	"sync"
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/position"
)

// ErrRequestActive indicates a second Request before Release.
var ErrRequestActive = errors.New("simulated gnss request already active")

// track is the loop of fixes the simulated receiver walks, one per request.
var track = []position.Fix{
	{Latitude: 52.5200066, Longitude: 13.4049540, Altitude: 34.5, Speed: 1.2, Satellites: 9},
	{Latitude: 52.5201100, Longitude: 13.4052300, Altitude: 34.8, Speed: 1.4, Satellites: 10},
	{Latitude: 52.5202750, Longitude: 13.4055900, Altitude: 35.1, Speed: 1.1, Satellites: 8},
	{Latitude: 52.5204300, Longitude: 13.4058200, Altitude: 35.0, Speed: 0.9, Satellites: 9},
}

// GNSS is a position.Requester resolving fixes along a fixed track after
// a configurable delay. A zero delay resolves on a fresh goroutine so the
// callback still arrives asynchronously.
type GNSS struct {
	delay time.Duration

	mu     sync.Mutex
	active bool
	timer  *time.Timer
	index  int
}

var _ position.Requester = (*GNSS)(nil)

// NewGNSS creates the simulated receiver. delay is the time to fix.
func NewGNSS(delay time.Duration) *GNSS {
	return &GNSS{delay: delay}
}

// Request schedules the next track point for delivery.
func (g *GNSS) Request(cb func(fix *position.Fix, err error)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return ErrRequestActive
	}
	g.active = true

	fix := track[g.index%len(track)]
	fix.Time = time.Now().Add(g.delay)
	g.index++

	g.timer = time.AfterFunc(g.delay, func() {
		cb(&fix, nil)
	})
	return nil
}

// Release ends the session. An unresolved request is cancelled; its
// callback never fires.
func (g *GNSS) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.active = false
}
