package texecom

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
)

// chunkedZoneStateLimit is the maximum number of zones the panel will
// report in a single GET_ZONE_STATE request (spec.md §4.5).
const chunkedZoneStateLimit = 168

// loadSiteData runs the full Topology Loader sequence of spec.md §4.5:
// identify the panel, derive its shape, then enumerate areas, zones and
// users, firing the details callbacks for each. It is run once after
// login/set-event-messages and again whenever siteDataChanged fires.
func (c *Client) loadSiteData() error {
	panelType, firmwareVersion, zoneCount, err := c.getPanelIdentification()
	if err != nil {
		return fmt.Errorf("texecom: get panel identification: %w", err)
	}
	shape, err := deriveShapeFromZoneCount(zoneCount)
	if err != nil {
		return err
	}
	shape.PanelType = panelType
	shape.FirmwareVersion = firmwareVersion
	c.shape = shape

	c.log.WithField("panel", panelType).
		WithField("firmware", firmwareVersion).
		WithField("zones", shape.NumberOfZones).
		WithField("areas", shape.NumberOfAreas).
		Info("identified panel")

	if t, err := c.getDateTime(); err != nil {
		c.log.WithError(err).Warn("failed to read panel date/time")
	} else if drift := time.Since(t); drift > time.Minute || drift < -time.Minute {
		c.log.WithField("panelTime", humanize.Time(t)).Warn("panel clock drift detected")
	}

	if power, err := c.getSystemPower(); err != nil {
		c.log.WithError(err).Warn("failed to read panel system power")
	} else {
		c.log.WithField("systemVoltage", power.SystemVoltage).
			WithField("batteryVoltage", power.BatteryVoltage).
			Debug("system power")
	}

	if pointer, err := c.getLogPointer(); err != nil {
		c.log.WithError(err).Warn("failed to read panel log pointer")
	} else {
		c.log.WithField("logPointer", pointer).Debug("log pointer")
	}

	if err := c.loadAllAreas(shape.NumberOfAreas); err != nil {
		return fmt.Errorf("texecom: load areas: %w", err)
	}
	if err := c.loadAllZones(shape.NumberOfZones, shape.NumberOfAreas); err != nil {
		return fmt.Errorf("texecom: load zones: %w", err)
	}
	if err := c.loadAllZoneStates(shape.NumberOfZones); err != nil {
		return fmt.Errorf("texecom: load zone states: %w", err)
	}
	if err := c.loadAllUsers(shape.NumberOfUsers); err != nil {
		return fmt.Errorf("texecom: load users: %w", err)
	}

	active := 0
	for _, z := range c.store.AllZones() {
		if z.Active {
			active++
		}
	}
	c.metrics.ZonesActive(active)

	return nil
}

// getPanelIdentification issues CMD_GETPANELIDENTIFICATION and parses its
// 32-byte ASCII, whitespace-separated identification string into its four
// fields — panelType, numberOfZones, an unused field, firmwareVersion —
// per spec.md §4.5 step 1 and §8 scenario 6 (e.g. "Premier640 640 X
// V4.00"). Per the Open Question in spec.md §9, a string that doesn't
// split into exactly four fields fails loudly rather than guessing a
// default panel shape.
func (c *Client) getPanelIdentification() (panelType, firmwareVersion string, zoneCount int, err error) {
	payload, err := c.sendCommand(cmdGetPanelIdentification, nil)
	if err != nil {
		return "", "", 0, err
	}
	text := trimText(payload)
	fields := strings.Fields(text)
	if len(fields) != 4 {
		return "", "", 0, fmt.Errorf("texecom: malformed panel identification %q: want 4 whitespace-separated fields, got %d", text, len(fields))
	}
	panelType = fields[0]
	zoneCount, err = strconv.Atoi(fields[1])
	if err != nil {
		return "", "", 0, fmt.Errorf("texecom: malformed panel identification %q: zone count %q is not numeric: %w", text, fields[1], err)
	}
	firmwareVersion = fields[3]
	return panelType, firmwareVersion, zoneCount, nil
}

// getDateTime issues CMD_GETDATETIME and decodes its BCD-packed fields,
// per spec.md §4.5.
func (c *Client) getDateTime() (time.Time, error) {
	payload, err := c.sendCommand(cmdGetDateTime, nil)
	if err != nil {
		return time.Time{}, err
	}
	if len(payload) < 6 {
		return time.Time{}, fmt.Errorf("texecom: short date/time payload (%d bytes)", len(payload))
	}
	day := bcdDecode(payload[0])
	month := bcdDecode(payload[1])
	year := 2000 + int(bcdDecode(payload[2]))
	hour := bcdDecode(payload[3])
	minute := bcdDecode(payload[4])
	second := bcdDecode(payload[5])
	return time.Date(year, time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.Local), nil
}

// bcdDecode converts one binary-coded-decimal byte (high nibble tens, low
// nibble units) to its integer value.
func bcdDecode(b byte) byte {
	return (b>>4)*10 + (b & 0x0F)
}

// bcdDecodeDigits decodes a run of BCD-packed bytes into its digit string:
// each byte contributes up to two nibble digits (high nibble first), and
// decoding stops at the first nibble greater than 9 (spec.md §3/§8's
// GLOSSARY and round-trip property: bcdDecodeDigits([0x12, 0x34, 0xFF]) ==
// "1234").
func bcdDecodeDigits(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		hi, lo := b>>4, b&0x0F
		if hi > 9 {
			return sb.String()
		}
		sb.WriteByte('0' + hi)
		if lo > 9 {
			return sb.String()
		}
		sb.WriteByte('0' + lo)
	}
	return sb.String()
}

// normalizeText implements the text-normalisation rule of spec.md §4.5,
// applied to every panel-supplied area/zone/user name: NULs become spaces,
// runs of non-word characters collapse to a single space, and the result
// is trimmed. Normalising to nothing preserves fallback instead (spec.md
// §4.5: "empty after normalisation preserves the original fallback name").
// This is idempotent: re-normalising an already-normalised string is a
// no-op, since it is already collapsed and trimmed.
func normalizeText(raw []byte, fallback string) string {
	clean := make([]byte, len(raw))
	for i, b := range raw {
		if b == 0 {
			clean[i] = ' '
		} else {
			clean[i] = b
		}
	}

	var sb strings.Builder
	lastWasSpace := false
	for _, r := range string(clean) {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			sb.WriteByte(' ')
		}
		lastWasSpace = true
	}

	result := strings.TrimSpace(sb.String())
	if result == "" {
		return fallback
	}
	return result
}

// SystemPower reports the panel's converted power readings, per spec.md
// §4.5 step 3: systemVoltage/batteryVoltage = 13.7 + (v - refV) * 0.070;
// systemCurrent/batteryCurrent = i * 9 (milliamps).
type SystemPower struct {
	SystemVoltage  float64
	BatteryVoltage float64
	SystemCurrent  int
	BatteryCurrent int
}

// getSystemPower issues CMD_GETSYSTEMPOWER and converts its 5-byte raw
// payload (refV, sysV, batV, sysI, batI) into real-world units, per
// spec.md §4.5 step 3. loadSiteData calls it on every topology load and
// logs the result; GetSystemPower exposes it for on-demand diagnostics.
func (c *Client) getSystemPower() (SystemPower, error) {
	payload, err := c.sendCommand(cmdGetSystemPower, nil)
	if err != nil {
		return SystemPower{}, err
	}
	if len(payload) < 5 {
		return SystemPower{}, fmt.Errorf("texecom: short system power payload (%d bytes)", len(payload))
	}
	refV := float64(payload[0])
	sysV := float64(payload[1])
	batV := float64(payload[2])
	sysI := int(payload[3])
	batI := int(payload[4])
	return SystemPower{
		SystemVoltage:  13.7 + (sysV-refV)*0.070,
		BatteryVoltage: 13.7 + (batV-refV)*0.070,
		SystemCurrent:  sysI * 9,
		BatteryCurrent: batI * 9,
	}, nil
}

// GetSystemPower issues CMD_GETSYSTEMPOWER and returns the panel's
// converted voltage/current readings, a diagnostic operation exposed per
// spec.md §4.8.
func (c *Client) GetSystemPower() (SystemPower, error) { return c.getSystemPower() }

// getLogPointer issues CMD_GETLOGPOINTER, returning the index of the most
// recent log entry (spec.md §4.8).
func (c *Client) getLogPointer() (int, error) {
	payload, err := c.sendCommand(cmdGetLogPointer, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) < 2 {
		return 0, fmt.Errorf("texecom: short log pointer payload (%d bytes)", len(payload))
	}
	return int(payload[0]) | int(payload[1])<<8, nil
}

// GetLCDDisplay issues CMD_GETLCDDISPLAY, a diagnostic operation exposed
// per spec.md §4.8 for reading the panel's current keypad text.
func (c *Client) GetLCDDisplay() (string, error) {
	payload, err := c.sendCommand(cmdGetLCDDisplay, nil)
	if err != nil {
		return "", err
	}
	return trimText(payload), nil
}

// GetSystemFlags issues CMD_GETSYSTEMFLAGS, a diagnostic operation that
// the panel exposes but which is not part of the automatic reconnect
// sequence (spec.md §4.8 notes the original implementation leaves this
// call commented out; it is kept here as an explicit diagnostic entry
// point instead).
func (c *Client) GetSystemFlags() ([]byte, error) {
	return c.sendCommand(cmdGetSystemFlags, nil)
}

// loadAllAreas enumerates every area 1..numberOfAreas via
// CMD_GETAREADETAILS, firing OnAreaDetails for each, per spec.md §4.5 step 5.
func (c *Client) loadAllAreas(numberOfAreas int) error {
	for number := 1; number <= numberOfAreas; number++ {
		a := c.store.area(number)
		if err := c.fetchAreaDetails(a); err != nil {
			return err
		}
		c.callbacks.fireAreaDetails(a, c.shape.PanelType, c.shape.NumberOfZones)
	}
	return nil
}

// fetchAreaDetails issues CMD_GETAREADETAILS and decodes its 25-byte
// payload per spec.md §4.5 step 5: area number (1 byte), 16-byte text,
// then the exit/entry1/entry2/secondEntry delays as 2-byte little-endian
// fields.
func (c *Client) fetchAreaDetails(a *Area) error {
	body := []byte{byte(a.Number)}
	payload, err := c.sendCommand(cmdGetAreaDetails, body)
	if err != nil {
		return fmt.Errorf("texecom: get area %d details: %w", a.Number, err)
	}
	if len(payload) < 25 {
		return fmt.Errorf("texecom: short area %d details payload (%d bytes)", a.Number, len(payload))
	}
	a.Text = normalizeText(payload[1:17], a.Text)
	a.ExitDelay = int(payload[17]) | int(payload[18])<<8
	a.Entry1Delay = int(payload[19]) | int(payload[20])<<8
	a.Entry2Delay = int(payload[21]) | int(payload[22])<<8
	a.SecondEntry = int(payload[23]) | int(payload[24])<<8
	return nil
}

// loadAllZones enumerates every zone 1..numberOfZones via
// CMD_GETZONEDETAILS, skipping unused slots, associating each with its
// member areas, and firing OnZoneDetails, per spec.md §4.5 step 4/5.
func (c *Client) loadAllZones(numberOfZones, numberOfAreas int) error {
	for number := 1; number <= numberOfZones; number++ {
		payload, err := c.sendCommand(cmdGetZoneDetails, c.encodeZoneNumber(number))
		if err != nil {
			return fmt.Errorf("texecom: get zone %d details: %w", number, err)
		}
		if len(payload) < 1+c.shape.AreaBitmapSize {
			return fmt.Errorf("texecom: short zone %d details payload (%d bytes)", number, len(payload))
		}
		zoneType := payload[0]
		areaBitmap := append([]byte{}, payload[1:1+c.shape.AreaBitmapSize]...)

		if zoneType == ZoneTypeUnused {
			continue
		}

		z := c.store.zone(number)
		z.ZoneType = zoneType
		z.AreaBitmap = areaBitmap
		z.Text = normalizeText(payload[1+c.shape.AreaBitmapSize:], z.Text)
		c.store.associateZoneWithAreas(z, numberOfAreas)
		c.callbacks.fireZoneDetails(z, c.shape.PanelType, c.shape.NumberOfZones)
	}
	return nil
}

// loadAllZoneStates issues CMD_GETZONESTATE in chunks no larger than
// chunkedZoneStateLimit zones per request, per spec.md §4.5 step 6 and the
// panel's documented per-message limit.
func (c *Client) loadAllZoneStates(numberOfZones int) error {
	for start := 1; start <= numberOfZones; start += chunkedZoneStateLimit {
		end := start + chunkedZoneStateLimit - 1
		if end > numberOfZones {
			end = numberOfZones
		}
		if err := c.fetchZoneStateRange(start, end); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) fetchZoneStateRange(start, end int) error {
	count := end - start + 1
	body := []byte{byte(start), byte(count)}
	payload, err := c.sendCommand(cmdGetZoneState, body)
	if err != nil {
		return fmt.Errorf("texecom: get zone state %d-%d: %w", start, end, err)
	}
	if len(payload) < count {
		return fmt.Errorf("texecom: short zone state payload for %d-%d (%d bytes)", start, end, len(payload))
	}
	for i := 0; i < count; i++ {
		number := start + i
		z := c.store.zone(number)
		if z.ZoneType == ZoneTypeUnused {
			continue
		}
		z.saveState(payload[i])
	}
	return nil
}

// loadAllUsers synthesises user slot 0 as "Engineer" and enumerates every
// real user slot 1..numberOfUsers-1 via CMD_GETUSER, per spec.md §3/§4.5
// step 7.
func (c *Client) loadAllUsers(numberOfUsers int) error {
	c.store.setUser(&User{Number: 0, Name: "Engineer"})

	for number := 1; number < numberOfUsers; number++ {
		u, err := c.fetchUser(number)
		if err != nil {
			return err
		}
		c.store.setUser(u)
	}
	return nil
}

// fetchUser issues CMD_GETUSER and decodes the 23-byte user-details form of
// spec.md §4.5 step 7: 8-byte name, 3-byte BCD passcode, area byte,
// modifier byte, lock byte, 3-byte doors, 4-byte BCD tag (sentinel-
// terminated at its last byte, 0xFF), 2-byte little-endian config.
func (c *Client) fetchUser(number int) (*User, error) {
	payload, err := c.sendCommand(cmdGetUser, c.encodeZoneNumber(number))
	if err != nil {
		return nil, fmt.Errorf("texecom: get user %d: %w", number, err)
	}
	if len(payload) < 23 {
		return nil, fmt.Errorf("texecom: short user %d details payload (%d bytes)", number, len(payload))
	}

	u := &User{Number: number}
	u.Name = normalizeText(payload[0:8], "")
	u.Passcode = bcdDecodeDigits(payload[8:11])
	u.Areas = payload[11]
	u.Modifiers = payload[12]
	u.Locks = payload[13]
	copy(u.Doors[:], payload[14:17])
	u.Tag = bcdDecodeDigits(payload[17:21])
	u.Config = uint16(payload[21]) | uint16(payload[22])<<8
	return u, nil
}

// armAreas issues CMD_ARMAREAS for the given area bitmap and arming type,
// per spec.md §4.6.
func (c *Client) armAreas(armType byte, areaBitmap []byte) error {
	body := append([]byte{armType}, areaBitmap...)
	payload, err := c.sendCommand(cmdArmAreas, body)
	if err != nil {
		return err
	}
	return checkACK(payload)
}

// disarmAreas issues CMD_DISARMAREAS, per spec.md §4.6.
func (c *Client) disarmAreas(areaBitmap []byte) error {
	payload, err := c.sendCommand(cmdDisarmAreas, areaBitmap)
	if err != nil {
		return err
	}
	return checkACK(payload)
}

// resetAreas issues CMD_RESETAREAS, per spec.md §4.6.
func (c *Client) resetAreas(areaBitmap []byte) error {
	payload, err := c.sendCommand(cmdResetAreas, areaBitmap)
	if err != nil {
		return err
	}
	return checkACK(payload)
}

// Arm issues an immediate (non-queued) full-arm request for areaBitmap,
// for one-shot CLI usage against a freshly Connect()-ed Client. Long-running
// daemons should prefer RequestArm, which goes through the queue so it is
// safe to call from another goroutine.
func (c *Client) Arm(areaBitmap []byte) error { return c.armAreas(armingTypeFull, areaBitmap) }

// PartArm issues an immediate part-1-arm request. See Arm.
func (c *Client) PartArm(areaBitmap []byte) error { return c.armAreas(armingTypePart1, areaBitmap) }

// Disarm issues an immediate disarm request. See Arm.
func (c *Client) Disarm(areaBitmap []byte) error { return c.disarmAreas(areaBitmap) }

// Reset issues an immediate reset request. See Arm.
func (c *Client) Reset(areaBitmap []byte) error { return c.resetAreas(areaBitmap) }

func checkACK(payload []byte) error {
	if len(payload) == 0 || payload[0] != respACK {
		return fmt.Errorf("texecom: expected ACK, got %v", payload)
	}
	return nil
}

// encodeZoneNumber little-endian-encodes a zone or user number to the
// panel's ZoneNumSize (1 byte normally, 2 on a 640-zone panel), matching
// the `number.to_bytes(zoneNumSize, "little")` encoding GET_ZONE_DETAILS
// and GET_USER both use.
func (c *Client) encodeZoneNumber(number int) []byte {
	size := c.shape.ZoneNumSize
	if size == 0 {
		size = 1
	}
	body := make([]byte, size)
	for i := 0; i < size; i++ {
		body[i] = byte(number >> (8 * i))
	}
	return body
}

// trimText strips trailing spaces and NUL padding from a fixed-width
// panel text field.
func trimText(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}
