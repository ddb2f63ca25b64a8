package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Broker discovery constants.
const (
	// BrokerServiceType is the mDNS service type of a local MQTT broker.
	BrokerServiceType = "_mqtt._tcp"

	// BrokerDomain is the mDNS browse domain.
	BrokerDomain = "local."

	// DefaultDiscoveryTimeout bounds one broker browse.
	DefaultDiscoveryTimeout = 5 * time.Second
)

// ErrNoBroker indicates no local broker answered within the timeout.
var ErrNoBroker = errors.New("no local MQTT broker discovered")

// DiscoverBroker browses mDNS for a local MQTT broker and returns the
// address of the first one found as a tcp:// URL. Used by the short-range
// link when no broker address is configured.
func DiscoverBroker(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		_ = zeroconf.Browse(ctx, BrokerServiceType, BrokerDomain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoBroker
			}
			if addr := entryAddress(entry); addr != "" {
				cancel()
				return addr, nil
			}

		case <-removed:
			// Departures are irrelevant to a one-shot browse.

		case <-ctx.Done():
			return "", ErrNoBroker
		}
	}
}

// entryAddress extracts a dialable broker URL from a service entry.
func entryAddress(e *zeroconf.ServiceEntry) string {
	if e == nil || e.Port == 0 {
		return ""
	}
	if len(e.AddrIPv4) > 0 {
		return fmt.Sprintf("tcp://%s:%d", e.AddrIPv4[0], e.Port)
	}
	if len(e.AddrIPv6) > 0 {
		return fmt.Sprintf("tcp://[%s]:%d", e.AddrIPv6[0], e.Port)
	}
	if e.HostName != "" {
		return fmt.Sprintf("tcp://%s:%d", e.HostName, e.Port)
	}
	return ""
}
