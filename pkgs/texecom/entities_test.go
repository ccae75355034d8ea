package texecom

import (
	"testing"
	"time"
)

func TestZoneSaveStateDecodesBits(t *testing.T) {
	z := newZone(5)

	z.saveState(0x01) // active, nothing else
	if !z.Active {
		t.Fatalf("expected zone active")
	}
	if z.StateText != "active" {
		t.Fatalf("StateText = %q, want %q", z.StateText, "active")
	}

	z.saveState(0x00 | (1 << 4)) // secure + alarmed
	if z.Active {
		t.Fatalf("expected zone inactive")
	}
	if !z.Armed {
		t.Fatalf("expected Armed after alarmed bit set")
	}

	z.saveState(0x00) // secure, no alarm
	if z.Armed {
		t.Fatalf("expected Armed cleared once alarmed bit clears")
	}
}

func TestZoneTickDecaysSmoothedActive(t *testing.T) {
	z := newZone(1)
	z.saveState(0x01) // active
	z.saveState(0x00) // now inactive; smoothedActive stays true

	if !z.SmoothedActive() {
		t.Fatalf("expected SmoothedActive true right after deactivation")
	}

	z.lastActive = time.Now().Add(-smoothedActiveDelay - time.Second)
	z.tick()
	if z.SmoothedActive() {
		t.Fatalf("expected SmoothedActive to decay after smoothedActiveDelay")
	}
}

func TestAreaSaveStateAndText(t *testing.T) {
	a := newArea(1)
	if a.StateText() != "" {
		t.Fatalf("expected empty state text before first state report")
	}
	a.saveState(AreaStatePartArmed)
	if a.StateText() != "part armed" {
		t.Fatalf("StateText = %q, want %q", a.StateText(), "part armed")
	}
}

func TestEntityStoreAssociateZoneWithAreasMirrorsInvariant(t *testing.T) {
	s := newEntityStore()
	z := s.zone(1)
	z.AreaBitmap = []byte{0x01} // member of area 1 only, out of 4 areas

	s.associateZoneWithAreas(z, 4)

	if _, ok := z.Areas[1]; !ok {
		t.Fatalf("expected zone to be associated with area 1")
	}
	a1 := s.area(1)
	if _, ok := a1.Zones[1]; !ok {
		t.Fatalf("expected area 1 to list zone 1 as a member")
	}
	a2 := s.area(2)
	if _, ok := a2.Zones[1]; ok {
		t.Fatalf("did not expect area 2 to list zone 1 as a member")
	}

	// Flip membership to area 2 only and re-associate; area 1's mirror
	// must be cleaned up, not just area 2's added.
	z.AreaBitmap = []byte{0x02}
	s.associateZoneWithAreas(z, 4)
	if _, ok := a1.Zones[1]; ok {
		t.Fatalf("expected area 1's stale membership to be removed")
	}
	if _, ok := a2.Zones[1]; !ok {
		t.Fatalf("expected area 2 to now list zone 1 as a member")
	}
}
