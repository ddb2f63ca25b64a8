package simulated

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// Battery reports host vitals in place of a battery gauge: free memory
// stands in for remaining charge, load for draw, uptime for time on
// battery. It is the one producer in simulation mode reading a real
// data source.
type Battery struct{}

var _ sensor.Producer = (*Battery)(nil)

// NewBattery creates the host vitals producer.
func NewBattery() *Battery {
	return &Battery{}
}

// DisplayName returns the sensor name.
func (b *Battery) DisplayName() string {
	return "BAT"
}

// Sample reads the host vitals once.
func (b *Battery) Sample(ctx context.Context) ([]sensor.Measurement, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	uptime, err := host.UptimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("uptime: %w", err)
	}

	return []sensor.Measurement{
		sensor.Float3("chg", 100-vm.UsedPercent),
		sensor.Float3("drw", avg.Load1),
		sensor.Integer("upt", int64(uptime)),
	}, nil
}
