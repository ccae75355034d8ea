package texecom

import "testing"

func TestBCDDecode(t *testing.T) {
	cases := []struct {
		in   byte
		want byte
	}{
		{0x00, 0}, {0x09, 9}, {0x10, 10}, {0x23, 23}, {0x59, 59},
	}
	for _, c := range cases {
		if got := bcdDecode(c.in); got != c.want {
			t.Errorf("bcdDecode(0x%02x) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTrimText(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("Premier 24  "), "Premier 24"},
		{[]byte("Premier 24\x00\x00\x00"), "Premier 24"},
		{[]byte("   "), ""},
		{[]byte{}, ""},
	}
	for _, c := range cases {
		if got := trimText(c.in); got != c.want {
			t.Errorf("trimText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBCDDecodeDigitsTerminatesOnNonDigitNibble(t *testing.T) {
	if got := bcdDecodeDigits([]byte{0x12, 0x34, 0xFF}); got != "1234" {
		t.Fatalf("bcdDecodeDigits = %q, want %q", got, "1234")
	}
}

func TestNormalizeTextCollapsesAndFallsBack(t *testing.T) {
	cases := []struct {
		in       []byte
		fallback string
		want     string
	}{
		{[]byte("Front  Door\x00\x00"), "Zone1", "Front Door"},
		{[]byte("\x00\x00\x00"), "Zone1", "Zone1"},
		{[]byte("Kitchen!!PIR"), "Zone2", "Kitchen PIR"},
	}
	for _, c := range cases {
		got := normalizeText(c.in, c.fallback)
		if got != c.want {
			t.Errorf("normalizeText(%q, %q) = %q, want %q", c.in, c.fallback, got, c.want)
		}
		// Idempotence: re-normalising the already-normalised text (as raw
		// bytes) changes nothing.
		if again := normalizeText([]byte(got), c.fallback); again != got {
			t.Errorf("normalizeText not idempotent: %q -> %q", got, again)
		}
	}
}

func TestGetPanelIdentificationParsesWhitespaceSeparatedFields(t *testing.T) {
	c, panelConn := newTestClient(t)
	defer panelConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, body := readCommandFrame(t, panelConn)
		if body[0] != cmdGetPanelIdentification {
			t.Errorf("expected GET_PANEL_IDENTIFICATION, got opcode %d", body[0])
		}
		text := "Premier640 640 X V4.00"
		payload := make([]byte, 33)
		payload[0] = cmdGetPanelIdentification
		copy(payload[1:], text)
		response := encodeFrame(frameResponse, seq, payload)
		if _, err := panelConn.Write(response); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	panelType, firmware, zoneCount, err := c.getPanelIdentification()
	if err != nil {
		t.Fatalf("getPanelIdentification: %v", err)
	}
	<-done

	if panelType != "Premier640" {
		t.Errorf("panelType = %q, want Premier640", panelType)
	}
	if zoneCount != 640 {
		t.Errorf("zoneCount = %d, want 640", zoneCount)
	}
	if firmware != "V4.00" {
		t.Errorf("firmwareVersion = %q, want V4.00", firmware)
	}
}

func TestGetPanelIdentificationRejectsMalformedString(t *testing.T) {
	c, panelConn := newTestClient(t)
	defer panelConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, _ := readCommandFrame(t, panelConn)
		payload := make([]byte, 33)
		payload[0] = cmdGetPanelIdentification
		copy(payload[1:], "garbage")
		response := encodeFrame(frameResponse, seq, payload)
		if _, err := panelConn.Write(response); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	if _, _, _, err := c.getPanelIdentification(); err == nil {
		t.Fatalf("expected error for malformed identification string")
	}
	<-done
}

func TestEncodeZoneNumberWidthMatchesPanelShape(t *testing.T) {
	c, panelConn := newTestClient(t)
	defer panelConn.Close()
	c.shape.ZoneNumSize = 2

	if got := c.encodeZoneNumber(300); string(got) != string([]byte{0x2C, 0x01}) {
		t.Fatalf("encodeZoneNumber(300) = %v, want [0x2C 0x01]", got)
	}

	c.shape.ZoneNumSize = 0 // unset defaults to 1 byte
	if got := c.encodeZoneNumber(5); string(got) != string([]byte{0x05}) {
		t.Fatalf("encodeZoneNumber(5) = %v, want [0x05]", got)
	}
}

func TestGetSystemPowerAppliesConversionFormula(t *testing.T) {
	c, panelConn := newTestClient(t)
	defer panelConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, body := readCommandFrame(t, panelConn)
		if body[0] != cmdGetSystemPower {
			t.Errorf("expected GET_SYSTEM_POWER, got opcode %d", body[0])
		}
		// refV=100, sysV=110, batV=90, sysI=2, batI=1
		response := encodeFrame(frameResponse, seq, []byte{cmdGetSystemPower, 100, 110, 90, 2, 1})
		if _, err := panelConn.Write(response); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	power, err := c.getSystemPower()
	if err != nil {
		t.Fatalf("getSystemPower: %v", err)
	}
	<-done

	if power.SystemVoltage < 14.39 || power.SystemVoltage > 14.41 {
		t.Errorf("SystemVoltage = %v, want ~14.4", power.SystemVoltage)
	}
	if power.BatteryVoltage < 12.99 || power.BatteryVoltage > 13.01 {
		t.Errorf("BatteryVoltage = %v, want ~13.0", power.BatteryVoltage)
	}
	if power.SystemCurrent != 18 {
		t.Errorf("SystemCurrent = %d, want 18", power.SystemCurrent)
	}
	if power.BatteryCurrent != 9 {
		t.Errorf("BatteryCurrent = %d, want 9", power.BatteryCurrent)
	}
}

func TestLoadAllUsersSynthesisesEngineerAndDecodesUser(t *testing.T) {
	c, panelConn := newTestClient(t)
	defer panelConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, body := readCommandFrame(t, panelConn)
		if body[0] != cmdGetUser {
			t.Errorf("expected GET_USER, got opcode %d", body[0])
		}
		payload := make([]byte, 24)
		payload[0] = cmdGetUser
		copy(payload[1:9], "Alice\x00\x00\x00")
		copy(payload[9:12], []byte{0x12, 0x34, 0xFF}) // passcode "1234"
		payload[12] = 0x01                            // areas bitmap
		payload[13] = 0x02                            // modifiers
		payload[14] = 0x03                            // locks
		copy(payload[15:18], []byte{0xAA, 0xBB, 0xCC}) // doors
		copy(payload[18:22], []byte{0x56, 0x78, 0xFF, 0xFF})
		payload[22], payload[23] = 0x34, 0x12 // config LE = 0x1234
		response := encodeFrame(frameResponse, seq, payload)
		if _, err := panelConn.Write(response); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	if err := c.loadAllUsers(2); err != nil {
		t.Fatalf("loadAllUsers: %v", err)
	}
	<-done

	engineer := c.store.user(0)
	if engineer == nil || engineer.Name != "Engineer" {
		t.Fatalf("expected synthesised Engineer at slot 0, got %+v", engineer)
	}

	u := c.store.user(1)
	if u == nil {
		t.Fatalf("expected user 1 to be loaded")
	}
	if u.Name != "Alice" {
		t.Errorf("Name = %q, want Alice", u.Name)
	}
	if u.Passcode != "1234" {
		t.Errorf("Passcode = %q, want 1234", u.Passcode)
	}
	if u.Tag != "5678" {
		t.Errorf("Tag = %q, want 5678", u.Tag)
	}
	if u.Config != 0x1234 {
		t.Errorf("Config = 0x%04x, want 0x1234", u.Config)
	}
	if !u.Valid() {
		t.Fatalf("expected user 1 to be valid")
	}
}

func TestFetchZoneStateRangeAppliesStates(t *testing.T) {
	c, panelConn := newTestClient(t)
	defer panelConn.Close()
	c.shape.NumberOfZones = 4
	// Zones must be configured (zoneType != unused) for their state to be
	// saved, per spec.md §3's invariant that an unused zone is never
	// reported in state updates.
	c.store.zone(1).ZoneType = 3 // Interior
	c.store.zone(2).ZoneType = 3
	c.store.zone(3).ZoneType = 3

	done := make(chan struct{})
	go func() {
		defer close(done)
		seq, body := readCommandFrame(t, panelConn)
		if body[0] != cmdGetZoneState {
			t.Errorf("expected GET_ZONE_STATE, got opcode %d", body[0])
		}
		response := encodeFrame(frameResponse, seq, []byte{cmdGetZoneState, 0x00, 0x01, 0x00})
		if _, err := panelConn.Write(response); err != nil {
			t.Errorf("write response: %v", err)
		}
	}()

	if err := c.fetchZoneStateRange(1, 3); err != nil {
		t.Fatalf("fetchZoneStateRange: %v", err)
	}
	<-done

	if c.store.zone(2).StateText != "active" {
		t.Fatalf("zone 2 state = %q, want active", c.store.zone(2).StateText)
	}
	if c.store.zone(1).Active {
		t.Fatalf("zone 1 should not be active")
	}
}
