package texecom

import "testing"

func TestDecodeLogEventTimestamp(t *testing.T) {
	// 2024-03-15 13:45:30, packed per spec.md §4.4's bit layout.
	var packed uint32
	packed |= uint32(30) & 0x3F
	packed |= (uint32(45) & 0x3F) << 6
	packed |= (uint32(3) & 0xF) << 12
	packed |= (uint32(13) & 0x1F) << 16
	packed |= (uint32(15) & 0x1F) << 21
	packed |= (uint32(24) & 0x3F) << 26

	got := decodeLogEventTimestamp(packed)
	want := "2024-03-15 13:45:30"
	if got != want {
		t.Fatalf("decodeLogEventTimestamp = %q, want %q", got, want)
	}
}

func TestDispatchZoneEventUpdatesStore(t *testing.T) {
	c := New("test-host", 10001, "1234", Callbacks{})
	var fired Zone
	c.callbacks.OnZoneEvent = func(z Zone) { fired = z }

	// zone 3, state=active(0x01), 1-byte zone number (2-byte payload)
	c.dispatchMessage([]byte{msgZoneEvent, 3, 0x01})

	z := c.store.zone(3)
	if !z.Active {
		t.Fatalf("expected zone 3 active")
	}
	if fired.Number != 3 {
		t.Fatalf("callback fired for zone %d, want 3", fired.Number)
	}
}

func TestDispatchZoneEventTwoByteZoneNumberOn640ZonePanel(t *testing.T) {
	c := New("test-host", 10001, "1234", Callbacks{})
	c.shape.ZoneNumSize = 2
	var fired Zone
	c.callbacks.OnZoneEvent = func(z Zone) { fired = z }

	// zone 300 (0x012C little-endian), state=active(0x01)
	c.dispatchMessage([]byte{msgZoneEvent, 0x2C, 0x01, 0x01})

	if fired.Number != 300 {
		t.Fatalf("callback fired for zone %d, want 300", fired.Number)
	}
	if !fired.Active {
		t.Fatalf("expected zone 300 active")
	}
}

func TestDispatchAreaEventUpdatesStore(t *testing.T) {
	c := New("test-host", 10001, "1234", Callbacks{})
	var fired Area
	c.callbacks.OnAreaEvent = func(a Area) { fired = a }

	c.dispatchMessage([]byte{msgAreaEvent, 2, byte(AreaStateArmed)})

	a := c.store.area(2)
	if a.State != AreaStateArmed {
		t.Fatalf("area state = %v, want Armed", a.State)
	}
	if fired.Number != 2 {
		t.Fatalf("callback fired for area %d, want 2", fired.Number)
	}
}

func TestDispatchLogEventSiteDataChanged(t *testing.T) {
	c := New("test-host", 10001, "1234", Callbacks{})
	if c.siteDataChanged {
		t.Fatalf("siteDataChanged should start false")
	}

	// 8-byte form: eventType, groupByte, parameter, areas, 4-byte timestamp.
	body := []byte{msgLogEvent, logEventTypeSiteDataChanged, 0, 0, 0, 0, 0, 0, 0}
	c.dispatchMessage(body)

	if !c.siteDataChanged {
		t.Fatalf("expected siteDataChanged to be set on log event type 100")
	}
}

func TestHandleLogEventVariableLengthForms(t *testing.T) {
	cases := []struct {
		name string
		rest []byte
	}{
		{"8-byte form", []byte{5, 0x10, 7, 3, 0, 0, 0, 0}},
		{"9-byte form (Premier 168 wide areas)", []byte{5, 0x10, 7, 3, 0, 0, 0, 0, 1}},
		{"16-byte form (Premier 640)", []byte{5, 0x10, 7, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0xAA, 0xAA, 0xAA, 0xAA}},
	}
	for _, tc := range cases {
		c := New("test-host", 10001, "1234", Callbacks{})
		var fired string
		c.callbacks.OnLogEvent = func(msg string) { fired = msg }

		body := append([]byte{msgLogEvent}, tc.rest...)
		c.dispatchMessage(body)

		if fired == "" {
			t.Errorf("%s: expected on_log_event to fire", tc.name)
		}
	}
}

func TestHandleLogEventUnrecognisedLengthIgnored(t *testing.T) {
	c := New("test-host", 10001, "1234", Callbacks{})
	var fired bool
	c.callbacks.OnLogEvent = func(string) { fired = true }

	c.dispatchMessage([]byte{msgLogEvent, 1, 2, 3})
	if fired {
		t.Fatalf("expected on_log_event not to fire for a malformed-length LOGEVENT")
	}
}

func TestOutputLocationText(t *testing.T) {
	if got := outputLocationText(0); got != "Panel outputs" {
		t.Fatalf("outputLocationText(0) = %q", got)
	}
	// 0x10: high nibble 1, low nibble 0 -> network 1 keypad outputs.
	if got := outputLocationText(0x10); got != "Network 1 keypad outputs" {
		t.Fatalf("outputLocationText(0x10) = %q, want %q", got, "Network 1 keypad outputs")
	}
	// 0x12: high nibble 1, low nibble 2 -> network 1 expander 2 outputs.
	if got := outputLocationText(0x12); got != "Network 1 expander 2 outputs" {
		t.Fatalf("outputLocationText(0x12) = %q, want %q", got, "Network 1 expander 2 outputs")
	}
}
