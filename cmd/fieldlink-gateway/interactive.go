package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/fieldlink-iot/fieldlink-go/pkg/controller"
	"github.com/fieldlink-iot/fieldlink-go/pkg/link"
	"github.com/fieldlink-iot/fieldlink-go/pkg/sensor"
)

// console is the interactive command surface over the mode controller.
type console struct {
	ctrl *controller.Controller
	rl   *readline.Instance
}

// newConsole creates the readline-backed console.
func newConsole(ctrl *controller.Controller) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "fieldlink> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &console{ctrl: ctrl, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Close releases the terminal.
func (c *console) Close() {
	_ = c.rl.Close()
}

// Run starts the interactive command loop.
func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()

		case "start":
			c.cmdStart(ctx, args)

		case "stop":
			c.cmdStop(ctx)

		case "period":
			c.cmdPeriod(args)

		case "pool":
			c.cmdPool(args)

		case "suspend":
			c.cmdSuspend(args, true)

		case "resume":
			c.cmdSuspend(args, false)

		case "publish":
			c.cmdPublish(args)

		case "status":
			c.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Fieldlink Gateway Commands:
  Mode:
    start <short-range|cellular> - Bring a link up and start reporting
    stop                         - Tear the active link down

  Configuration (disabled mode only):
    period <duration>            - Set the bus sampling period, e.g. 30s
    pool <on|off>                - Pooled rounds or per-sensor messages
    suspend <sensor>             - Pause one producer (ENV, BAT, ACC, MAG, LHT, GYR, GNSS)
    resume <sensor>              - Resume one producer
    publish <sensor> <on|off>    - Toggle one producer's publish gate

  General:
    status                       - Show mode, links and producers
    help                         - Show this help
    quit                         - Exit gateway`)
}

func (c *console) cmdStart(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: start <short-range|cellular>")
		return
	}

	var kind link.Kind
	switch strings.ToLower(args[0]) {
	case "short-range", "short", "a":
		kind = link.KindShortRange
	case "cellular", "cell", "b":
		kind = link.KindCellular
	default:
		fmt.Fprintf(c.rl.Stdout(), "Unknown link: %s\n", args[0])
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "Starting %s link...\n", kind)
	if err := c.ctrl.StartLink(ctx, kind); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Start failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Mode: %s\n", c.ctrl.Mode())
}

func (c *console) cmdStop(ctx context.Context) {
	mode := c.ctrl.Mode()
	if mode == controller.ModeDisabled {
		fmt.Fprintln(c.rl.Stdout(), "No link active")
		return
	}

	kind := link.KindShortRange
	if mode == controller.ModeCellular {
		kind = link.KindCellular
	}
	if err := c.ctrl.StopLink(ctx, kind); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Stop failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "Disabled")
}

func (c *console) cmdPeriod(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: period <duration>   e.g. period 30s")
		return
	}

	d, err := time.ParseDuration(args[0])
	if err != nil {
		// Bare numbers are taken as seconds.
		if secs, nerr := strconv.Atoi(args[0]); nerr == nil {
			d = time.Duration(secs) * time.Second
		} else {
			fmt.Fprintf(c.rl.Stdout(), "Invalid duration: %v\n", err)
			return
		}
	}

	if err := c.ctrl.SetUpdatePeriod(d); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Rejected: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Update period set to %s\n", d)
}

func (c *console) cmdPool(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: pool <on|off>")
		return
	}

	enabled := strings.EqualFold(args[0], "on")
	if err := c.ctrl.SetAggregation(enabled); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Rejected: %v\n", err)
		return
	}
	if enabled {
		fmt.Fprintln(c.rl.Stdout(), "Pooled rounds enabled")
	} else {
		fmt.Fprintln(c.rl.Stdout(), "Per-sensor messages enabled")
	}
}

func (c *console) cmdSuspend(args []string, suspend bool) {
	verb := "resume"
	if suspend {
		verb = "suspend"
	}
	if len(args) < 1 {
		fmt.Fprintf(c.rl.Stdout(), "Usage: %s <sensor>\n", verb)
		return
	}

	cat, ok := parseCategory(args[0])
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Unknown sensor: %s\n", args[0])
		return
	}
	if err := c.ctrl.SetProducerSuspended(cat, suspend); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Rejected: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s %sd\n", cat, verb)
}

func (c *console) cmdPublish(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: publish <sensor> <on|off>")
		return
	}

	cat, ok := parseCategory(args[0])
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "Unknown sensor: %s\n", args[0])
		return
	}
	enabled := strings.EqualFold(args[1], "on")
	if err := c.ctrl.SetProducerPublish(cat, enabled); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Rejected: %v\n", err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s publish %s\n", cat, args[1])
}

func (c *console) cmdStatus() {
	s := c.ctrl.Snapshot()

	fmt.Fprintln(c.rl.Stdout(), "\nGateway Status")
	fmt.Fprintln(c.rl.Stdout(), "-------------------------------------------")
	fmt.Fprintf(c.rl.Stdout(), "  Mode:          %s\n", s.Mode)
	fmt.Fprintf(c.rl.Stdout(), "  Transition:    %v\n", s.Locked)
	fmt.Fprintf(c.rl.Stdout(), "  Update period: %s\n", s.UpdatePeriod)
	fmt.Fprintf(c.rl.Stdout(), "  Pooled rounds: %v\n", s.Aggregate)

	fmt.Fprintln(c.rl.Stdout(), "\n  Links:")
	for _, l := range s.Links {
		line := fmt.Sprintf("    %-12s %s", l.Kind, l.Status)
		if l.LastError != "" {
			line += "  (" + l.LastError + ")"
		}
		fmt.Fprintln(c.rl.Stdout(), line)
	}

	fmt.Fprintln(c.rl.Stdout(), "\n  Producers:")
	for _, p := range s.Producers {
		state := "running"
		if p.Suspended {
			state = "suspended"
		}
		gate := "publishing"
		if !p.Publish {
			gate = "muted"
		}
		fmt.Fprintf(c.rl.Stdout(), "    %-6s %-10s %s\n", p.Category, state, gate)
	}
	fmt.Fprintln(c.rl.Stdout())
}

// parseCategory resolves a sensor name as shown in reports.
func parseCategory(s string) (sensor.Category, bool) {
	name := strings.ToUpper(s)
	for cat := sensor.Category(0); cat < sensor.CategoryCount; cat++ {
		if cat.String() == name {
			return cat, true
		}
	}
	return 0, false
}
