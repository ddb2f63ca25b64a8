package controller

import (
	"time"

	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
	"github.com/fieldlink-iot/fieldlink-go/pkg/version"
)

// ProducerStatus is one producer's state as reported over the status
// surface.
type ProducerStatus struct {
	Category  string `json:"category"`
	Suspended bool   `json:"suspended"`
	Publish   bool   `json:"publish"`
}

// LinkStatus is one link client's session state.
type LinkStatus struct {
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	LastError string `json:"lastError,omitempty"`
}

// Snapshot is a point-in-time view of the controller for the status
// surface. It is assembled without holding any producer locks.
type Snapshot struct {
	Version      string           `json:"version"`
	Mode         string           `json:"mode"`
	Locked       bool             `json:"locked"`
	UpdatePeriod string           `json:"updatePeriod"`
	Aggregate    bool             `json:"aggregate"`
	Producers    []ProducerStatus `json:"producers"`
	Links        []LinkStatus     `json:"links"`
}

// Snapshot captures the current controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	mode := c.mode
	locked := c.locked
	period := c.updatePeriod
	c.mu.Unlock()

	s := Snapshot{
		Version:      version.String(),
		Mode:         mode.String(),
		Locked:       locked,
		UpdatePeriod: period.Round(time.Millisecond).String(),
		Aggregate:    c.builder.Aggregate(),
	}

	for _, t := range c.tasks {
		s.Producers = append(s.Producers, ProducerStatus{
			Category:  t.Category().String(),
			Suspended: t.Suspended(),
			Publish:   t.PublishEnabled(),
		})
	}

	for _, kind := range []link.Kind{link.KindShortRange, link.KindCellular} {
		client, ok := c.clients[kind]
		if !ok {
			continue
		}
		ls := LinkStatus{Kind: kind.String(), Status: client.Status().String()}
		if err := client.LastResult(); err != nil {
			ls.LastError = err.Error()
		}
		s.Links = append(s.Links, ls)
	}

	return s
}
