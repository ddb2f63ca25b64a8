package mqttlink

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
)

// Client defaults.
const (
	// DefaultConnectTimeout bounds one broker connect attempt.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultKeepAlive is the MQTT keep-alive interval.
	DefaultKeepAlive = 60 * time.Second

	// DefaultMaxMessageSize is the largest accepted encoded report.
	DefaultMaxMessageSize = 2048

	// cellularKeepAlive stretches the keep-alive for modem links, where
	// every ping costs battery and airtime.
	cellularKeepAlive = 10 * time.Minute

	// cellularConnectAttempts retries modem connects, which routinely fail
	// transiently while the radio attaches.
	cellularConnectAttempts = 3
)

// ErrMissingBroker indicates neither a broker address nor discovery is available.
var ErrMissingBroker = errors.New("no broker address configured")

// Config describes one MQTT link profile.
type Config struct {
	// Kind selects the link this client serves.
	Kind link.Kind

	// BrokerURL is the broker address (tcp:// or ssl://). Empty on the
	// short-range profile triggers mDNS discovery at Open time.
	BrokerURL string

	// ClientID is the MQTT client identifier; the device ID by convention.
	ClientID string

	// Username and Password are the broker credentials, if any.
	Username string
	Password string

	// UseTLS dials the broker over TLS.
	UseTLS bool

	// InsecureSkipVerify disables server certificate verification. Test
	// brokers only.
	InsecureSkipVerify bool

	// ConnectTimeout bounds one connect attempt.
	ConnectTimeout time.Duration

	// ConnectAttempts is the number of connect attempts per Open, with
	// backoff between them. Zero selects the profile default.
	ConnectAttempts int

	// KeepAlive is the MQTT keep-alive interval.
	KeepAlive time.Duration

	// MaxMessageSize is the largest accepted encoded report.
	MaxMessageSize int
}

// withDefaults fills in zero values per profile.
func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.KeepAlive == 0 {
		if c.Kind == link.KindCellular {
			c.KeepAlive = cellularKeepAlive
		} else {
			c.KeepAlive = DefaultKeepAlive
		}
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.ConnectAttempts == 0 {
		if c.Kind == link.KindCellular {
			c.ConnectAttempts = cellularConnectAttempts
		} else {
			c.ConnectAttempts = 1
		}
	}
	return c
}

// Client is a link.Client backed by paho MQTT.
type Client struct {
	config Config
	logger *slog.Logger

	mu         sync.Mutex
	mc         mqtt.Client
	status     link.Status
	lastResult error
}

// New creates an MQTT link client. No network activity happens until Open.
func New(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config.withDefaults(),
		logger: logger.With("link", config.Kind.String()),
		status: link.StatusClosed,
	}
}

// Kind identifies which link this client serves.
func (c *Client) Kind() link.Kind {
	return c.config.Kind
}

// Status returns the current session state.
func (c *Client) Status() link.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastResult returns the outcome of the last asynchronous operation.
func (c *Client) LastResult() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastResult
}

// MaxMessageSize returns the largest payload the link accepts.
func (c *Client) MaxMessageSize() int {
	return c.config.MaxMessageSize
}

// Open starts establishing the broker session. The connect attempt runs in
// the background; callers poll Status until Connected or LastResult turns
// non-nil.
func (c *Client) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.status != link.StatusClosed {
		c.mu.Unlock()
		return link.ErrAlreadyOpen
	}
	c.status = link.StatusOpen
	c.lastResult = nil
	c.mu.Unlock()

	broker := c.config.BrokerURL
	if broker == "" {
		if c.config.Kind != link.KindShortRange {
			c.fail(ErrMissingBroker)
			return ErrMissingBroker
		}
		discovered, err := link.DiscoverBroker(ctx, 0)
		if err != nil {
			c.fail(err)
			return err
		}
		c.logger.Info("discovered local broker", "addr", discovered)
		broker = discovered
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.config.ClientID).
		SetKeepAlive(c.config.KeepAlive).
		SetConnectTimeout(c.config.ConnectTimeout).
		SetAutoReconnect(false).
		SetCleanSession(true)
	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}
	if c.config.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: c.config.InsecureSkipVerify,
		})
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.mu.Lock()
		if c.status == link.StatusConnected {
			c.status = link.StatusClosed
			c.lastResult = err
		}
		c.mu.Unlock()
		c.logger.Warn("connection lost", "err", err)
	})

	mc := mqtt.NewClient(opts)
	c.mu.Lock()
	c.mc = mc
	c.mu.Unlock()

	go func() {
		backoff := link.NewBackoff()
		var lastErr error
		for attempt := 1; attempt <= c.config.ConnectAttempts; attempt++ {
			if attempt > 1 {
				select {
				case <-time.After(backoff.Next()):
				case <-ctx.Done():
					c.fail(ctx.Err())
					return
				}
				// Close may have raced the retry.
				if c.Status() != link.StatusOpen {
					return
				}
			}

			token := mc.Connect()
			token.Wait()
			if err := token.Error(); err != nil {
				lastErr = err
				c.logger.Warn("connect attempt failed",
					"attempt", attempt, "broker", broker, "err", err)
				continue
			}

			c.adopt(mc, broker)
			return
		}
		c.fail(fmt.Errorf("connect %s: %w", broker, lastErr))
	}()

	return nil
}

// adopt promotes a successful connect to the Connected session. If Close
// raced the connect window, the session is no longer owned here and is
// torn down instead of leaking with its keepalive running.
func (c *Client) adopt(mc mqtt.Client, broker string) {
	c.mu.Lock()
	if c.status == link.StatusOpen {
		c.status = link.StatusConnected
		c.mu.Unlock()
		c.logger.Info("connected", "broker", broker)
		return
	}
	c.mu.Unlock()
	mc.Disconnect(0)
}

// Publish sends one encoded report fire-and-forget. The topic alias is
// carried in the device's cloud registration; MQTT 3.1.1 sessions address
// by topic name only, so it is unused on the wire here.
func (c *Client) Publish(topic string, _ uint16, payload []byte, qos byte, retain bool) error {
	c.mu.Lock()
	mc := c.mc
	status := c.status
	c.mu.Unlock()

	if status != link.StatusConnected || mc == nil {
		return link.ErrNotConnected
	}

	token := mc.Publish(topic, qos, retain, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close tears the broker session down and waits for the network layer to
// quiesce.
func (c *Client) Close(_ context.Context) error {
	c.mu.Lock()
	mc := c.mc
	c.mc = nil
	c.status = link.StatusClosed
	c.lastResult = nil
	c.mu.Unlock()

	if mc != nil && mc.IsConnectionOpen() {
		// 250ms grace for in-flight writes, per paho convention.
		mc.Disconnect(250)
	}
	return nil
}

// fail records a terminal operation result and resets the session state.
func (c *Client) fail(err error) {
	c.mu.Lock()
	c.status = link.StatusClosed
	c.lastResult = err
	c.mu.Unlock()
	c.logger.Warn("link operation failed", "err", err)
}

// Compile-time interface satisfaction check.
var _ link.Client = (*Client)(nil)
