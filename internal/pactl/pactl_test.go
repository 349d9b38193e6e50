package pactl

import "testing"

const sampleSinkList = `Sink #50
	State: RUNNING
	Name: alsa_output.usb-SMSL_USB_AUDIO-00.analog-stereo
	Description: SMSL USB AUDIO Analog Stereo
	Flags: HARDWARE LATENCY
	Sample Specification: s32le 2ch 192000Hz
	Properties:
		device.bus = "usb"
		alsa.card = "2"

Sink #1
	State: SUSPENDED
	Name: auto_null
	Description: Dummy Output
	Flags: DECIBEL_VOLUME LATENCY
	Sample Specification: s16le 2ch 44100Hz
	Properties:
		device.bus = "pci"
`

func TestParseSinkListExtractsFields(t *testing.T) {
	sinks := parseSinkList(sampleSinkList, "alsa_output.usb-SMSL_USB_AUDIO-00.analog-stereo")
	if len(sinks) != 2 {
		t.Fatalf("got %d sinks, want 2", len(sinks))
	}

	usb := sinks[0]
	if usb.Name != "alsa_output.usb-SMSL_USB_AUDIO-00.analog-stereo" {
		t.Fatalf("unexpected name: %q", usb.Name)
	}
	if usb.Description != "SMSL USB AUDIO Analog Stereo" {
		t.Fatalf("unexpected description: %q", usb.Description)
	}
	if !usb.IsHardware {
		t.Fatal("expected IsHardware true")
	}
	if usb.MaxSampleRate != 192000 {
		t.Fatalf("unexpected max sample rate: %d", usb.MaxSampleRate)
	}
	if usb.DeviceBus != "usb" {
		t.Fatalf("unexpected device bus: %q", usb.DeviceBus)
	}
	if usb.ALSACard != "2" {
		t.Fatalf("unexpected alsa card: %q", usb.ALSACard)
	}
	if !usb.IsDefault {
		t.Fatal("expected usb sink marked default")
	}

	null := sinks[1]
	if null.IsDefault {
		t.Fatal("expected auto_null not marked default")
	}
	if null.MaxSampleRate != 44100 {
		t.Fatalf("unexpected max sample rate: %d", null.MaxSampleRate)
	}
}

func TestParseSinkListEmptyOutput(t *testing.T) {
	sinks := parseSinkList("", "")
	if len(sinks) != 0 {
		t.Fatalf("expected no sinks, got %v", sinks)
	}
}
