package mqttlink

import (
	"context"
	"net"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
)

func TestConfigDefaults(t *testing.T) {
	t.Run("ShortRange", func(t *testing.T) {
		c := Config{Kind: link.KindShortRange}.withDefaults()
		if c.KeepAlive != DefaultKeepAlive {
			t.Errorf("KeepAlive = %v, want %v", c.KeepAlive, DefaultKeepAlive)
		}
		if c.ConnectTimeout != DefaultConnectTimeout {
			t.Errorf("ConnectTimeout = %v", c.ConnectTimeout)
		}
		if c.MaxMessageSize != DefaultMaxMessageSize {
			t.Errorf("MaxMessageSize = %d", c.MaxMessageSize)
		}
	})

	t.Run("CellularKeepAlive", func(t *testing.T) {
		c := Config{Kind: link.KindCellular}.withDefaults()
		if c.KeepAlive != 10*time.Minute {
			t.Errorf("cellular KeepAlive = %v, want 10m", c.KeepAlive)
		}
	})

	t.Run("ConnectAttempts", func(t *testing.T) {
		if got := (Config{Kind: link.KindShortRange}.withDefaults()).ConnectAttempts; got != 1 {
			t.Errorf("short-range ConnectAttempts = %d, want 1", got)
		}
		if got := (Config{Kind: link.KindCellular}.withDefaults()).ConnectAttempts; got != cellularConnectAttempts {
			t.Errorf("cellular ConnectAttempts = %d, want %d", got, cellularConnectAttempts)
		}
	})
}

// sessionSpy records Disconnect calls on an otherwise unused paho client.
type sessionSpy struct {
	mqtt.Client
	disconnected bool
}

func (s *sessionSpy) Disconnect(quiesce uint) { s.disconnected = true }

func TestAdopt(t *testing.T) {
	t.Run("PromotesOpenSession", func(t *testing.T) {
		c := New(Config{Kind: link.KindShortRange, BrokerURL: "tcp://127.0.0.1:1"}, nil)
		c.mu.Lock()
		c.status = link.StatusOpen
		c.mu.Unlock()

		mc := &sessionSpy{}
		c.adopt(mc, "tcp://127.0.0.1:1")
		if mc.disconnected {
			t.Error("owned session was disconnected")
		}
		if got := c.Status(); got != link.StatusConnected {
			t.Errorf("status = %v, want CONNECTED", got)
		}
	})

	t.Run("TearsDownAfterClose", func(t *testing.T) {
		// Close won the race against a connect that then succeeded: the
		// session is no longer owned and must not stay up.
		c := New(Config{Kind: link.KindShortRange, BrokerURL: "tcp://127.0.0.1:1"}, nil)

		mc := &sessionSpy{}
		c.adopt(mc, "tcp://127.0.0.1:1")
		if !mc.disconnected {
			t.Error("orphaned session left connected")
		}
		if got := c.Status(); got != link.StatusClosed {
			t.Errorf("status = %v, want CLOSED", got)
		}
	})
}

func TestClientLifecycle(t *testing.T) {
	t.Run("StartsClosed", func(t *testing.T) {
		c := New(Config{Kind: link.KindCellular, BrokerURL: "tcp://127.0.0.1:1"}, nil)
		if got := c.Status(); got != link.StatusClosed {
			t.Errorf("new client status = %v, want CLOSED", got)
		}
	})

	t.Run("PublishWithoutSession", func(t *testing.T) {
		c := New(Config{Kind: link.KindCellular, BrokerURL: "tcp://127.0.0.1:1"}, nil)
		err := c.Publish("t", 1, []byte("x"), 0, false)
		if err != link.ErrNotConnected {
			t.Errorf("Publish on closed link = %v, want ErrNotConnected", err)
		}
	})

	t.Run("CellularWithoutBrokerFails", func(t *testing.T) {
		c := New(Config{Kind: link.KindCellular}, nil)
		if err := c.Open(context.Background()); err != ErrMissingBroker {
			t.Errorf("Open = %v, want ErrMissingBroker", err)
		}
		if got := c.Status(); got != link.StatusClosed {
			t.Errorf("status after failed open = %v, want CLOSED", got)
		}
		if c.LastResult() == nil {
			t.Error("LastResult nil after failed open")
		}
	})

	t.Run("DoubleOpenRejected", func(t *testing.T) {
		// A listener that accepts and stays silent keeps the first Open
		// in progress until its connect timeout.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer ln.Close()
		go func() {
			conn, err := ln.Accept()
			if err == nil {
				defer conn.Close()
				time.Sleep(time.Second)
			}
		}()

		c := New(Config{
			Kind:           link.KindCellular,
			BrokerURL:      "tcp://" + ln.Addr().String(),
			ConnectTimeout: 200 * time.Millisecond,
		}, nil)
		if err := c.Open(context.Background()); err != nil {
			t.Fatal(err)
		}
		if err := c.Open(context.Background()); err != link.ErrAlreadyOpen {
			t.Errorf("second Open = %v, want ErrAlreadyOpen", err)
		}
		_ = c.Close(context.Background())
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		c := New(Config{Kind: link.KindShortRange, BrokerURL: "tcp://127.0.0.1:1"}, nil)
		if err := c.Close(context.Background()); err != nil {
			t.Errorf("Close on closed client: %v", err)
		}
		if err := c.Close(context.Background()); err != nil {
			t.Errorf("second Close: %v", err)
		}
	})
}
