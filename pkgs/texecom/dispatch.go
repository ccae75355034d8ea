package texecom

import "fmt"

// dispatchMessage decodes an unsolicited MSG frame body and routes it by
// tag, per spec.md §4.4. The first body byte is the MSG tag; the rest is
// tag-specific.
func (c *Client) dispatchMessage(body []byte) {
	if len(body) == 0 {
		c.log.Warn("empty message body, ignoring")
		return
	}
	tag, rest := body[0], body[1:]

	switch tag {
	case msgDebug:
		c.handleDebug(rest)
	case msgZoneEvent:
		c.handleZoneEvent(rest)
	case msgAreaEvent:
		c.handleAreaEvent(rest)
	case msgOutputEvent:
		c.handleOutputEvent(rest)
	case msgUserEvent:
		c.handleUserEvent(rest)
	case msgLogEvent:
		c.handleLogEvent(rest)
	default:
		c.log.WithField("tag", tag).Warn("unknown message tag, ignoring")
	}
}

func (c *Client) handleDebug(rest []byte) {
	c.log.WithField("bytes", fmt.Sprintf("%x", rest)).Debug("panel debug message")
}

// handleZoneEvent decodes ZONEEVENT. The message is self-describing by
// length rather than by panel shape (spec.md §4.4/§8 scenario 6): a
// 2-byte payload is a 1-byte zone number plus a 1-byte state bitmap; a
// 3-byte payload is a 2-byte little-endian zone number (640-zone panels)
// plus the state bitmap.
func (c *Client) handleZoneEvent(rest []byte) {
	var number int
	var state byte
	switch len(rest) {
	case 2:
		number = int(rest[0])
		state = rest[1]
	case 3:
		number = int(rest[0]) | int(rest[1])<<8
		state = rest[2]
	default:
		c.log.WithField("length", len(rest)).Warn("unrecognised ZONEEVENT payload length, ignoring")
		return
	}

	z := c.store.zone(number)
	z.saveState(state)
	c.log.WithField("zone", number).WithField("state", z.StateText).Debug("zone event")
	c.callbacks.fireZoneEvent(z)
}

// handleAreaEvent decodes AREAEVENT: area number (1 byte) + state byte,
// per spec.md §4.4.
func (c *Client) handleAreaEvent(rest []byte) {
	if len(rest) < 2 {
		c.log.Warn("short AREAEVENT message, ignoring")
		return
	}
	number := int(rest[0])
	state := AreaState(rest[1])

	a := c.store.area(number)
	a.saveState(state)
	c.log.WithField("area", number).WithField("state", a.StateText()).Debug("area event")
	c.callbacks.fireAreaEvent(a)
}

// handleOutputEvent decodes OUTPUTEVENT: location (1 byte) + state
// (1 byte), per spec.md §4.4. There is no dedicated output-event
// callback in spec.md §6, so this is logged only.
func (c *Client) handleOutputEvent(rest []byte) {
	if len(rest) < 2 {
		c.log.Warn("short OUTPUTEVENT message, ignoring")
		return
	}
	location, state := rest[0], rest[1]
	c.log.WithField("location", outputLocationText(location)).
		WithField("state", state).
		Debug("output event")
}

// outputLocationText names a location code: the first len(outputLocations)
// codes are fixed panel locations; above that, a zero low nibble names a
// network keypad (high nibble = keypad number) and anything else names a
// network expander (high nibble = network number, low nibble = expander
// number), per original_source/texecomConnect.py's handle_event_message.
func outputLocationText(location byte) string {
	if int(location) < len(outputLocations) {
		return outputLocations[location]
	}
	if location&0xF == 0 {
		return fmt.Sprintf("Network %d keypad outputs", location>>4)
	}
	return fmt.Sprintf("Network %d expander %d outputs", location>>4, location&0xF)
}

// userLogonKinds names the USEREVENT logon-kind byte: code entry, tag
// presentation, or both together.
var userLogonKinds = [...]string{"code", "tag", "code+tag"}

// handleUserEvent decodes USEREVENT: user number (1 byte) + logon kind
// (1 byte), per spec.md §4.4. There is no dedicated user-event callback in
// spec.md §6, so this is logged only, resolving the user's name from the
// topology already loaded, when known.
func (c *Client) handleUserEvent(rest []byte) {
	if len(rest) < 2 {
		c.log.Warn("short USEREVENT message, ignoring")
		return
	}
	number, kind := int(rest[0]), rest[1]

	name := "unknown"
	if u := c.store.user(number); u != nil {
		name = u.Name
	}
	kindText := "unknown"
	if int(kind) < len(userLogonKinds) {
		kindText = userLogonKinds[kind]
	}
	c.log.WithField("user", number).WithField("name", name).WithField("kind", kindText).Debug("user event")
}

// handleLogEvent decodes LOGEVENT, whose layout depends on its total
// length (spec.md §4.4, and §9's Open Question on the Premier 640 form):
//
//	 8 bytes: eventType, groupByte, parameter(1), areas(1), timestamp(4)
//	 9 bytes: as above but areas is split low/high, the high byte trailing
//	          at offset 8 (Premier 168's wider area info)
//	16 bytes: eventType, groupByte, parameter(2 LE), areas(4 LE), timestamp(4,
//	          the first 4 of an 8-byte timestamp field; Premier 640, unverified
//	          against real hardware per spec.md §9)
//
// groupByte packs the group type in its low 6 bits, with bit 6 marking
// comm-delayed and bit 7 marking communicated.
func (c *Client) handleLogEvent(rest []byte) {
	var parameter, areas int
	var timestamp uint32

	switch len(rest) {
	case 8:
		parameter = int(rest[2])
		areas = int(rest[3])
		timestamp = decodeTimestampLE(rest[4:8])
	case 9:
		parameter = int(rest[2])
		areas = int(rest[3]) | int(rest[8])<<8
		timestamp = decodeTimestampLE(rest[4:8])
	case 16:
		parameter = int(rest[2]) | int(rest[3])<<8
		areas = int(rest[4]) | int(rest[5])<<8 | int(rest[6])<<16 | int(rest[7])<<24
		timestamp = decodeTimestampLE(rest[8:12])
	default:
		c.log.WithField("length", len(rest)).Warn("unrecognised LOGEVENT payload length, ignoring")
		return
	}

	eventType := rest[0]
	groupByte := rest[1]
	groupType := groupByte & 0x3F
	groupText := logEventGroupTypeText(groupType)
	if groupByte&0x40 != 0 {
		groupText += " [comm delayed]"
	}
	if groupByte&0x80 != 0 {
		groupText += " [communicated]"
	}

	when := decodeLogEventTimestamp(timestamp)
	message := fmt.Sprintf("%s: %s, %s parameter: %d areas: %d",
		when, logEventTypeText(eventType), groupText, parameter, areas)

	c.log.WithField("group", groupType).WithField("type", eventType).Debug("log event")
	c.callbacks.fireLogEvent(message)

	if eventType == logEventTypeSiteDataChanged {
		c.siteDataChanged = true
	}
}

func decodeTimestampLE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// decodeLogEventTimestamp unpacks the panel's packed log-event timestamp,
// per spec.md §4.4:
//
//	bits 0-5:   second
//	bits 6-11:  minute
//	bits 12-15: month
//	bits 16-20: hour
//	bits 21-25: day
//	bits 26-31: year offset from 2000
func decodeLogEventTimestamp(packed uint32) string {
	second := packed & 0x3F
	minute := (packed >> 6) & 0x3F
	month := (packed >> 12) & 0xF
	hour := (packed >> 16) & 0x1F
	day := (packed >> 21) & 0x1F
	year := 2000 + (packed>>26)&0x3F

	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, month, day, hour, minute, second)
}
