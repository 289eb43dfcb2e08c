package driver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/registry"
)

// runner abstracts command execution so tests can script outcomes without a
// display server.
type runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// execRunner is the production runner calling the real binary.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "),
			strings.TrimSpace(string(out)), err)
	}
	return nil
}

// XDoTool drives deliveries through the xdotool binary: move the pointer to
// the registered chat input, click to focus, type the text, press Return.
type XDoTool struct {
	tool      string
	typeDelay time.Duration
	timeout   time.Duration
	run       runner
}

// XDoToolOpts holds parameters for creating an XDoTool driver.
type XDoToolOpts struct {
	Tool      string        // binary name, default "xdotool"
	TypeDelay time.Duration // inter-keystroke delay, default 12ms
	Timeout   time.Duration // per-delivery deadline, default 10s
	// For testing: inject a scripted runner instead of real execution.
	Runner runner
}

// NewXDoTool creates the production simulated-input driver.
func NewXDoTool(opts XDoToolOpts) *XDoTool {
	if opts.Tool == "" {
		opts.Tool = "xdotool"
	}
	if opts.TypeDelay <= 0 {
		opts.TypeDelay = 12 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	run := opts.Runner
	if run == nil {
		run = execRunner{}
	}
	return &XDoTool{
		tool:      opts.Tool,
		typeDelay: opts.TypeDelay,
		timeout:   opts.Timeout,
		run:       run,
	}
}

// Deliver injects text at the agent's chat input coordinate. The focus step
// failing maps to CoordinateInvalid (the window moved or closed), the typing
// step failing maps to InputBlocked, and a blown deadline maps to Timeout.
func (x *XDoTool) Deliver(ctx context.Context, coords registry.Coordinates, text string) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	p := coords.ChatInput
	focusSteps := [][]string{
		{"mousemove", strconv.Itoa(p.X), strconv.Itoa(p.Y)},
		{"click", "1"},
	}
	for _, args := range focusSteps {
		if err := x.run.Run(ctx, x.tool, args...); err != nil {
			return x.classify(ctx, ReasonCoordinateInvalid, err)
		}
	}

	delayMs := strconv.Itoa(int(x.typeDelay / time.Millisecond))
	if err := x.run.Run(ctx, x.tool, "type", "--delay", delayMs, "--", text); err != nil {
		return x.classify(ctx, ReasonInputBlocked, err)
	}
	if err := x.run.Run(ctx, x.tool, "key", "Return"); err != nil {
		return x.classify(ctx, ReasonInputBlocked, err)
	}
	return nil
}

// classify wraps a step failure, preferring Timeout when the deadline is the
// real cause.
func (x *XDoTool) classify(ctx context.Context, reason FailureReason, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &DeliveryError{Reason: ReasonTimeout, Err: err}
	}
	return &DeliveryError{Reason: reason, Err: err}
}
