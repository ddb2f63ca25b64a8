package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/journal"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// fakeRequester is a scriptable GNSS driver.
type fakeRequester struct {
	mu       sync.Mutex
	cb       func(fix *Fix, err error)
	issued   int
	released int

	// issueErr makes Request fail synchronously.
	issueErr error

	// releaseGate, when set, blocks Release until closed.
	releaseGate chan struct{}
}

func (r *fakeRequester) Request(cb func(fix *Fix, err error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issueErr != nil {
		return r.issueErr
	}
	r.cb = cb
	r.issued++
	return nil
}

func (r *fakeRequester) Release() {
	r.mu.Lock()
	gate := r.releaseGate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	r.mu.Lock()
	r.released++
	r.mu.Unlock()
}

func (r *fakeRequester) deliver(fix *Fix, err error) {
	r.mu.Lock()
	cb := r.cb
	r.mu.Unlock()
	if cb != nil {
		cb(fix, err)
	}
}

func (r *fakeRequester) counts() (issued, released int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.issued, r.released
}

func newTestAcquirer(r Requester) (*Acquirer, chan sensor.Packet) {
	out := make(chan sensor.Packet, 8)
	a := NewAcquirer(r, out, nil, nil)
	a.SetPublish(true)
	return a, out
}

// recordingJournal captures recorded events for inspection.
type recordingJournal struct {
	mu     sync.Mutex
	events []journal.Event
}

func (j *recordingJournal) Record(e journal.Event) {
	j.mu.Lock()
	j.events = append(j.events, e)
	j.mu.Unlock()
}

func (j *recordingJournal) all() []journal.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Event(nil), j.events...)
}

func waitPacket(t *testing.T, out <-chan sensor.Packet) sensor.Packet {
	t.Helper()
	select {
	case pkt := <-out:
		return pkt
	case <-time.After(2 * time.Second):
		t.Fatal("no packet emitted")
		return sensor.Packet{}
	}
}

func TestCallbackPath(t *testing.T) {
	r := &fakeRequester{}
	a, out := newTestAcquirer(r)

	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	if got := a.State(); got != StatePending {
		t.Fatalf("state after Begin = %v, want PENDING", got)
	}

	fix := &Fix{Latitude: 63.4212963, Longitude: 10.4370351, Satellites: 8}
	r.deliver(fix, nil)
	if got := a.State(); got != StateObtained {
		t.Fatalf("state after callback = %v, want OBTAINED", got)
	}

	a.Finalize()
	pkt := waitPacket(t, out)
	if !pkt.OK() {
		t.Fatalf("packet err = %v, want OK", pkt.Err)
	}
	if pkt.Measurements[0].Name != "lat" || pkt.Measurements[0].Kind != sensor.KindPositionFloat {
		t.Errorf("unexpected first measurement: %+v", pkt.Measurements[0])
	}
	if got := a.State(); got != StateCompleted {
		t.Errorf("state after Finalize = %v, want COMPLETED", got)
	}
	if _, released := r.counts(); released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
}

func TestTimeoutPath(t *testing.T) {
	r := &fakeRequester{}
	a, out := newTestAcquirer(r)
	if err := a.SetPeriods(50*time.Millisecond, 15*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()
	a.Resume()

	// No callback ever arrives: the cycle must finalize exactly once with
	// a Timeout outcome.
	pkt := waitPacket(t, out)
	if pkt.Err != sensor.DataTimeout {
		t.Fatalf("packet err = %v, want TIMEOUT", pkt.Err)
	}

	// State settles in COMPLETED between cycles (or PENDING once the next
	// cycle starts); wait for the release to be observed.
	time.Sleep(10 * time.Millisecond)
	if _, released := r.counts(); released < 1 {
		t.Error("driver resource never released after timeout")
	}
}

func TestLateCallbackIgnored(t *testing.T) {
	r := &fakeRequester{}
	a, out := newTestAcquirer(r)

	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	a.Finalize()
	pkt := waitPacket(t, out)
	if pkt.Err != sensor.DataTimeout {
		t.Fatalf("forced finalize packet err = %v, want TIMEOUT", pkt.Err)
	}

	// Result arrives after finalize: must not resurrect the request.
	r.deliver(&Fix{Latitude: 1}, nil)
	if got := a.State(); got != StateCompleted {
		t.Errorf("state after late callback = %v, want COMPLETED", got)
	}
	select {
	case extra := <-out:
		t.Errorf("late callback produced a packet: %+v", extra)
	default:
	}
}

func TestSyncIssueFailure(t *testing.T) {
	r := &fakeRequester{issueErr: sensor.ErrNotInitialized}
	a, out := newTestAcquirer(r)

	err := a.Begin()
	if err != ErrRequestFailed {
		t.Fatalf("Begin = %v, want ErrRequestFailed", err)
	}

	pkt := waitPacket(t, out)
	if pkt.Err != sensor.DataReadFailed {
		t.Fatalf("packet err = %v, want READ_FAIL", pkt.Err)
	}
	if got := a.State(); got != StateCompleted {
		t.Errorf("state = %v, want COMPLETED", got)
	}
	if _, released := r.counts(); released != 0 {
		t.Errorf("released = %d for a request that never issued", released)
	}
}

func TestBeginForcesStaleFinalize(t *testing.T) {
	r := &fakeRequester{}
	a, out := newTestAcquirer(r)

	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	// Second Begin while the first is still pending: the stale request is
	// finalized (Timeout outcome) and released before the new one issues.
	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}

	pkt := waitPacket(t, out)
	if pkt.Err != sensor.DataTimeout {
		t.Fatalf("stale finalize packet err = %v, want TIMEOUT", pkt.Err)
	}
	issued, released := r.counts()
	if issued != 2 || released != 1 {
		t.Errorf("issued/released = %d/%d, want 2/1", issued, released)
	}
	if got := a.State(); got != StatePending {
		t.Errorf("state = %v, want PENDING for the fresh request", got)
	}
	a.Finalize()
}

func TestReleaseObservedBeforeNextBegin(t *testing.T) {
	gate := make(chan struct{})
	r := &fakeRequester{releaseGate: gate}
	a, _ := newTestAcquirer(r)

	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	r.deliver(&Fix{Latitude: 1, Longitude: 2}, nil)

	finalizeDone := make(chan struct{})
	go func() {
		a.Finalize()
		close(finalizeDone)
	}()

	beginDone := make(chan struct{})
	go func() {
		// Finalize is blocked in Release; this Begin must not issue a
		// new request until the release completes.
		_ = a.Begin()
		close(beginDone)
	}()

	time.Sleep(30 * time.Millisecond)
	select {
	case <-beginDone:
		t.Fatal("Begin proceeded before the previous release completed")
	default:
	}

	close(gate)
	<-finalizeDone
	select {
	case <-beginDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Begin never proceeded after release")
	}

	issued, released := r.counts()
	if issued != 2 || released != 1 {
		t.Errorf("issued/released = %d/%d, want 2/1", issued, released)
	}
	a.Finalize()
}

func TestJournalRecordsOutcomes(t *testing.T) {
	r := &fakeRequester{}
	out := make(chan sensor.Packet, 8)
	events := &recordingJournal{}
	a := NewAcquirer(r, out, events, nil)
	a.SetPublish(true)

	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	r.deliver(&Fix{Latitude: 63.4212963, Longitude: 10.4370351}, nil)
	a.Finalize()

	// No result: the forced finalize records a timeout.
	if err := a.Begin(); err != nil {
		t.Fatal(err)
	}
	a.Finalize()

	recorded := events.all()
	if len(recorded) != 2 {
		t.Fatalf("recorded %d events, want 2", len(recorded))
	}
	for i, e := range recorded {
		if e.Category != journal.CategoryPosition {
			t.Errorf("event %d category = %v, want POSITION", i, e.Category)
		}
	}
	if recorded[0].Outcome != journal.OutcomeFix {
		t.Errorf("first outcome = %q, want %q", recorded[0].Outcome, journal.OutcomeFix)
	}
	if recorded[1].Outcome != journal.OutcomeTimeout {
		t.Errorf("second outcome = %q, want %q", recorded[1].Outcome, journal.OutcomeTimeout)
	}
}

func TestSetPeriods(t *testing.T) {
	t.Run("Validation", func(t *testing.T) {
		a, _ := newTestAcquirer(&fakeRequester{})
		for _, tc := range []struct{ update, timeout time.Duration }{
			{0, time.Second},
			{time.Second, 0},
			{time.Second, time.Second},
			{time.Second, 2 * time.Second},
		} {
			if err := a.SetPeriods(tc.update, tc.timeout); err != ErrInvalidPeriods {
				t.Errorf("SetPeriods(%v, %v) = %v, want ErrInvalidPeriods", tc.update, tc.timeout, err)
			}
		}
	})

	t.Run("InFlightChangeCancels", func(t *testing.T) {
		r := &fakeRequester{}
		a, out := newTestAcquirer(r)

		if err := a.Begin(); err != nil {
			t.Fatal(err)
		}
		if err := a.SetPeriods(40*time.Millisecond, 10*time.Millisecond); err != nil {
			t.Fatal(err)
		}

		pkt := waitPacket(t, out)
		if pkt.Err != sensor.DataTimeout {
			t.Errorf("cancellation packet err = %v, want TIMEOUT", pkt.Err)
		}
		if got := a.State(); got != StateCompleted {
			t.Errorf("state = %v, want COMPLETED", got)
		}
		if update, timeout := a.Periods(); update != 40*time.Millisecond || timeout != 10*time.Millisecond {
			t.Errorf("periods = %v/%v after change", update, timeout)
		}
	})
}
