package gnss

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/fieldlink-iot/fieldlink-go/pkg/position"
)

// Receiver errors.
var (
	// ErrRequestActive indicates a second Request before Release.
	ErrRequestActive = errors.New("gnss request already active")
)

// Config describes the serial receiver.
type Config struct {
	// Device is the serial device path, e.g. /dev/ttyUSB0.
	Device string

	// Baud is the line rate. Defaults to 9600, the NMEA standard rate.
	Baud int

	// ReadTimeout bounds each serial read so a dead receiver cannot hang
	// the reader goroutine.
	ReadTimeout time.Duration

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Baud == 0 {
		c.Baud = 9600
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Receiver turns a serial NMEA stream into position fixes. Each Request
// opens the port and reads sentences until a valid RMC and a GGA from the
// same stream are collected; Release closes the port and ends the session.
type Receiver struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	port *serial.Port
	wg   sync.WaitGroup
}

// NewReceiver creates a receiver for the configured serial device. The
// port is not touched until the first Request.
func NewReceiver(cfg Config) *Receiver {
	cfg = cfg.withDefaults()
	return &Receiver{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "gnss", "device", cfg.Device),
	}
}

var _ position.Requester = (*Receiver)(nil)

// Request opens the port and starts one fix attempt. The callback is
// invoked exactly once: with the fix, or with the read error if the
// stream ends first. A Release closing the port mid-read surfaces as a
// read error, which the caller's generation check discards as stale.
func (r *Receiver) Request(cb func(fix *position.Fix, err error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.port != nil {
		return ErrRequestActive
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        r.cfg.Device,
		Baud:        r.cfg.Baud,
		ReadTimeout: r.cfg.ReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", r.cfg.Device, err)
	}
	r.port = port

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fix, err := r.read(port)
		cb(fix, err)
	}()
	return nil
}

// read consumes the sentence stream until a fix is assembled.
func (r *Receiver) read(port *serial.Port) (*position.Fix, error) {
	var (
		rmc *RMC
		gga *GGA
	)

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		s, err := Parse(scanner.Text())
		if err != nil {
			// Receivers emit plenty of sentence types this parser does
			// not handle; partial lines at open are normal too.
			if !errors.Is(err, ErrUnsupported) {
				r.logger.Debug("sentence skipped", "err", err)
			}
			continue
		}

		switch v := s.(type) {
		case *RMC:
			if v.Valid {
				rmc = v
			}
		case *GGA:
			if v.Quality > 0 {
				gga = v
			}
		}

		if rmc != nil && gga != nil {
			return &position.Fix{
				Latitude:   rmc.Latitude,
				Longitude:  rmc.Longitude,
				Altitude:   gga.Altitude,
				Speed:      rmc.Speed,
				Satellites: gga.Satellites,
				Time:       rmc.Time,
			}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", r.cfg.Device, err)
	}
	return nil, io.ErrUnexpectedEOF
}

// Release ends the session: the port closes, which unblocks the reader,
// and the receiver becomes available for the next Request.
func (r *Receiver) Release() {
	r.mu.Lock()
	port := r.port
	r.port = nil
	r.mu.Unlock()

	if port == nil {
		return
	}
	if err := port.Close(); err != nil {
		r.logger.Warn("port close failed", "err", err)
	}
	r.wg.Wait()
}
