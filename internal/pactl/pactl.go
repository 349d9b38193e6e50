// Package pactl wraps the pactl/pw-metadata command-line tools PipeWire and
// PulseAudio both ship, parsing their plain-text output the way the
// teacher's code parses sqlite pragma/subprocess text elsewhere — no
// library models this corpus's particular text format.
package pactl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Sink describes one PipeWire/PulseAudio playback sink as reported by
// `pactl list sinks`.
type Sink struct {
	Name           string
	Description    string
	IsDefault      bool
	MaxSampleRate  int // 0 if not parseable
	IsHardware     bool
	DeviceBus      string // "usb", "pci", "bluetooth", ... ("" if absent)
	ALSACard       string // alsa.card property, if present
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s %v: %w", name, args, err)
	}
	return out.String(), nil
}

// DefaultSink returns the name of the current default sink.
func DefaultSink(ctx context.Context) (string, error) {
	out, err := runCommand(ctx, "pactl", "get-default-sink")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SetDefaultSink makes name the system default sink.
func SetDefaultSink(ctx context.Context, name string) error {
	_, err := runCommand(ctx, "pactl", "set-default-sink", name)
	return err
}

// ListSinks runs `pactl list sinks` and parses every sink block.
func ListSinks(ctx context.Context) ([]Sink, error) {
	out, err := runCommand(ctx, "pactl", "list", "sinks")
	if err != nil {
		return nil, err
	}
	defaultSink, _ := DefaultSink(ctx)
	return parseSinkList(out, defaultSink), nil
}

// parseSinkList implements the line-scanning logic ListSinks applies to
// `pactl list sinks` output, factored out for testability.
func parseSinkList(output, defaultSink string) []Sink {
	var sinks []Sink
	var cur Sink
	have := false

	flush := func() {
		if have && cur.Name != "" {
			cur.IsDefault = cur.Name == defaultSink
			sinks = append(sinks, cur)
		}
		cur = Sink{}
		have = false
	}

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "Sink #"):
			flush()
			have = true
		case strings.HasPrefix(line, "Name:"):
			cur.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Description:"):
			cur.Description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		case strings.HasPrefix(line, "Flags:"):
			cur.IsHardware = strings.Contains(line, "HARDWARE")
		case strings.Contains(line, "Sample Specification:"):
			if hzPos := strings.Index(line, "Hz"); hzPos >= 0 {
				beforeHz := line[:hzPos]
				if lastSpace := strings.LastIndex(beforeHz, " "); lastSpace >= 0 {
					if rate, err := strconv.Atoi(beforeHz[lastSpace+1:]); err == nil {
						cur.MaxSampleRate = rate
					}
				}
			}
		case strings.HasPrefix(line, "device.bus = "):
			cur.DeviceBus = unquote(strings.TrimPrefix(line, "device.bus = "))
		case strings.HasPrefix(line, "alsa.card = "):
			cur.ALSACard = unquote(strings.TrimPrefix(line, "alsa.card = "))
		}
	}
	flush()
	return sinks
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// ALSACardForSink looks up the alsa.card property of a named sink.
func ALSACardForSink(ctx context.Context, sinkName string) (string, bool, error) {
	sinks, err := ListSinks(ctx)
	if err != nil {
		return "", false, err
	}
	for _, s := range sinks {
		if s.Name == sinkName && s.ALSACard != "" {
			return s.ALSACard, true, nil
		}
	}
	return "", false, nil
}

// ForceClockRate sets PipeWire's clock.force-rate via pw-metadata, for
// bit-perfect sample rate switching. Errors are non-fatal to callers that
// don't strictly require it (not every system runs pw-metadata).
func ForceClockRate(ctx context.Context, rate int) error {
	_, err := runCommand(ctx, "pw-metadata", "-n", "settings", "0", "clock.force-rate", strconv.Itoa(rate))
	return err
}

// ForceQuantum sets PipeWire's clock.force-quantum via pw-metadata, pinning
// the graph's buffer size the way ForceClockRate pins its sample rate.
func ForceQuantum(ctx context.Context, quantum int) error {
	_, err := runCommand(ctx, "pw-metadata", "-n", "settings", "0", "clock.force-quantum", strconv.Itoa(quantum))
	return err
}

// ResetClockRate clears any forced clock rate/quantum, restoring PipeWire's
// default negotiation for other applications.
func ResetClockRate(ctx context.Context) {
	_, _ = runCommand(ctx, "pw-metadata", "-n", "settings", "0", "clock.force-rate", "0")
	_, _ = runCommand(ctx, "pw-metadata", "-n", "settings", "0", "clock.force-quantum", "0")
}

// Available reports whether pactl can talk to a running server, used to
// decide if the PipeWire/Pulse backend should advertise itself at all.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := runCommand(ctx, "pactl", "info")
	return err == nil
}
