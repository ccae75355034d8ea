package texecom

import "testing"

func TestDeriveShapeFromZoneCount(t *testing.T) {
	cases := []struct {
		zoneCount      int
		wantUsers      int
		wantAreas      int
		wantAreaBitmap int
		wantZoneBitmap int
	}{
		{12, 8, 2, 1, 2},
		{24, 25, 2, 1, 3},
		{168, 200, 16, 2, 21},
		{640, 1000, 64, 8, 80},
	}

	for _, c := range cases {
		shape, err := deriveShapeFromZoneCount(c.zoneCount)
		if err != nil {
			t.Fatalf("deriveShapeFromZoneCount(%d): %v", c.zoneCount, err)
		}
		if shape.NumberOfUsers != c.wantUsers {
			t.Errorf("zoneCount=%d: users = %d, want %d", c.zoneCount, shape.NumberOfUsers, c.wantUsers)
		}
		if shape.NumberOfAreas != c.wantAreas {
			t.Errorf("zoneCount=%d: areas = %d, want %d", c.zoneCount, shape.NumberOfAreas, c.wantAreas)
		}
		if shape.AreaBitmapSize != c.wantAreaBitmap {
			t.Errorf("zoneCount=%d: areaBitmapSize = %d, want %d", c.zoneCount, shape.AreaBitmapSize, c.wantAreaBitmap)
		}
		if shape.ZoneBitmapSize != c.wantZoneBitmap {
			t.Errorf("zoneCount=%d: zoneBitmapSize = %d, want %d", c.zoneCount, shape.ZoneBitmapSize, c.wantZoneBitmap)
		}
	}
}

func TestDeriveShapeFromZoneCountUnknown(t *testing.T) {
	if _, err := deriveShapeFromZoneCount(999); err == nil {
		t.Fatalf("expected error for unrecognised zone count")
	}
}
