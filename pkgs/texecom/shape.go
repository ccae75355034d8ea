package texecom

import "fmt"

// PanelShape is derived from the panel identification string and drives
// the sizing of every size-dependent payload the panel sends.
type PanelShape struct {
	PanelType       string
	FirmwareVersion string
	NumberOfZones   int
	NumberOfUsers   int
	NumberOfAreas   int
	AreaBitmapSize  int
	ZoneBitmapSize  int
	ZoneNumSize     int
}

var zoneCountToUsers = map[int]int{12: 8, 24: 25, 48: 50, 64: 50, 88: 100, 168: 200, 640: 1000}
var zoneCountToAreas = map[int]int{12: 2, 24: 2, 48: 4, 64: 4, 88: 8, 168: 16, 640: 64}
var zoneCountToAreaBitmapSize = map[int]int{12: 1, 24: 1, 48: 1, 64: 1, 88: 1, 168: 2, 640: 8}
var zoneCountToZoneNumSize = map[int]int{12: 1, 24: 1, 48: 1, 64: 1, 88: 1, 168: 1, 640: 2}

// deriveShapeFromZoneCount looks up the fixed per-panel-size table in §3.
// It fails loudly on an unrecognised zone count rather than guessing a
// default shape, per the Open Question in spec.md §9.
func deriveShapeFromZoneCount(zoneCount int) (PanelShape, error) {
	users, ok := zoneCountToUsers[zoneCount]
	if !ok {
		return PanelShape{}, fmt.Errorf("texecom: unrecognised panel zone count %d, cannot derive shape", zoneCount)
	}
	return PanelShape{
		NumberOfZones:  zoneCount,
		NumberOfUsers:  users,
		NumberOfAreas:  zoneCountToAreas[zoneCount],
		AreaBitmapSize: zoneCountToAreaBitmapSize[zoneCount],
		ZoneBitmapSize: (zoneCount + 7) / 8,
		ZoneNumSize:    zoneCountToZoneNumSize[zoneCount],
	}, nil
}
