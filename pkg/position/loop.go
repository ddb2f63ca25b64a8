package position

import (
	"context"
	"time"
)

// Start launches the cadence loop. Each cycle issues Begin, waits for the
// callback or the timeout to wake it, then finalizes. The loop idles while
// suspended.
func (a *Acquirer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}
	a.running = true
	a.stopCh = make(chan struct{})

	a.wg.Add(1)
	go a.loop(ctx, a.stopCh)
	return nil
}

// Stop terminates the cadence loop, finalizing any in-flight request.
func (a *Acquirer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stopCh)
	a.mu.Unlock()

	a.wg.Wait()

	a.mu.Lock()
	a.stopCh = nil
	a.mu.Unlock()
	a.Finalize()
}

// Suspend pauses the cadence without tearing the loop down.
func (a *Acquirer) Suspend() {
	a.mu.Lock()
	a.suspended = true
	a.mu.Unlock()
	a.kick()
}

// Resume restarts a suspended cadence.
func (a *Acquirer) Resume() {
	a.mu.Lock()
	a.suspended = false
	a.mu.Unlock()
	a.kick()
}

// Suspended reports whether the cadence is paused.
func (a *Acquirer) Suspended() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suspended
}

// kick wakes the loop so it re-reads period/suspension state.
func (a *Acquirer) kick() {
	select {
	case a.kickCh <- struct{}{}:
	default:
	}
}

func (a *Acquirer) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer a.wg.Done()

	for {
		a.mu.Lock()
		suspended := a.suspended
		period := a.updatePeriod
		a.mu.Unlock()

		if suspended {
			select {
			case <-a.kickCh:
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
			a.cycle(stopCh)
		case <-a.kickCh:
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

// cycle runs one full Begin/wait/Finalize acquisition.
func (a *Acquirer) cycle(stopCh <-chan struct{}) {
	if err := a.Begin(); err != nil {
		// Issue failure already emitted its packet.
		return
	}

	select {
	case <-a.wakeCh:
	case <-stopCh:
	}
	a.Finalize()
}
