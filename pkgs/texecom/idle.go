package texecom

import (
	"fmt"
	"time"
)

// runIdleStep is invoked from recvLoop on every pass with no outstanding
// command, per spec.md §4.6: first drain one queued arm/disarm/reset
// request if present, otherwise (once idleProbeInterval has elapsed since
// the last one) run a single alternating idle probe, which doubles as the
// keepalive the panel needs to avoid silently dropping the connection. A
// hard error here closes the transport immediately; it is not subject to
// the command-engine's own retry logic.
func (c *Client) runIdleStep() error {
	if next, ok := c.queue.pop(); ok {
		return c.drainQueuedCommand(next)
	}

	if time.Since(c.lastIdleAt) < idleProbeInterval {
		return nil
	}
	c.lastIdleAt = time.Now()

	var err error
	switch c.lastIdleCommand {
	case 0:
		err = c.getChangedZonesState()
		c.lastIdleCommand = 1
	default:
		err = c.getArmedAreaState()
		c.lastIdleCommand = 0
	}
	if err != nil {
		c.transport.close()
		return fmt.Errorf("texecom: idle probe failed: %w", err)
	}
	return nil
}

func (c *Client) drainQueuedCommand(q queuedCommand) error {
	var err error
	switch q.cmd {
	case cmdArmAreas:
		err = c.armAreas(q.armType, q.areaBitmap)
	case cmdDisarmAreas:
		err = c.disarmAreas(q.areaBitmap)
	case cmdResetAreas:
		err = c.resetAreas(q.areaBitmap)
	default:
		c.log.WithField("cmd", q.cmd).Warn("unknown queued command, discarding")
		return nil
	}
	if err != nil {
		c.log.WithError(err).WithField("cmd", q.cmd).Warn("queued arm/disarm/reset request failed")
	}
	return nil
}

// getChangedZonesState polls CMD_GETZONECHANGES and applies any reported
// state changes. The response is a bitmap, one bit per zone, set where the
// zone's state changed since the last poll; per spec.md §4.6/§8, each
// contiguous run of set bits is queried as a single GET_ZONE_STATE request,
// itself capped at chunkedZoneStateLimit zones (a 200-bit run yields two
// queries of 168 and 32 zones, not 200 single-zone queries).
func (c *Client) getChangedZonesState() error {
	payload, err := c.sendCommand(cmdGetZoneChanges, nil)
	if err != nil {
		return err
	}
	for _, run := range contiguousSetBitRuns(payload, c.shape.NumberOfZones) {
		for start := run.start; start <= run.end; start += chunkedZoneStateLimit {
			end := start + chunkedZoneStateLimit - 1
			if end > run.end {
				end = run.end
			}
			if err := c.fetchZoneStateRange(start, end); err != nil {
				return err
			}
		}
	}
	return nil
}

// zoneRun is an inclusive, 1-based range of zone numbers.
type zoneRun struct{ start, end int }

// contiguousSetBitRuns scans bitmap (one bit per zone, LSB-first per byte,
// zone 1 = bit 0 of byte 0) for maximal runs of consecutive set bits within
// 1..maxZone, per spec.md §4.6/§8.
func contiguousSetBitRuns(bitmap []byte, maxZone int) []zoneRun {
	var runs []zoneRun
	inRun := false
	var runStart int
	for number := 1; number <= maxZone; number++ {
		bit := number - 1
		byteIdx, bitIdx := bit/8, bit%8
		set := byteIdx < len(bitmap) && bitmap[byteIdx]&(1<<uint(bitIdx)) != 0
		switch {
		case set && !inRun:
			inRun, runStart = true, number
		case !set && inRun:
			runs = append(runs, zoneRun{runStart, number - 1})
			inRun = false
		}
	}
	if inRun {
		runs = append(runs, zoneRun{runStart, maxZone})
	}
	return runs
}

// getArmedAreaState polls CMD_GETAREAFLAGS row areaFlagsProbeIndex (a
// single bit-per-area armed/disarmed row, per spec.md §4.5 step 9) and
// updates Area.State without clobbering a part-armed state: the probe is
// binary and cannot represent part-armed, so it never overrides one,
// per spec.md §4.6's part-armed-preservation invariant.
func (c *Client) getArmedAreaState() error {
	payload, err := c.sendCommand(cmdGetAreaFlags, []byte{areaFlagsProbeIndex, 1})
	if err != nil {
		return err
	}
	if len(payload) < c.shape.AreaBitmapSize {
		return fmt.Errorf("texecom: short area-flags payload (%d bytes, want %d)", len(payload), c.shape.AreaBitmapSize)
	}
	flags := bitmapToUint(payload[:c.shape.AreaBitmapSize])
	for number := 1; number <= c.shape.NumberOfAreas; number++ {
		armed := flags&1 == 1
		flags >>= 1

		a := c.store.area(number)
		if a.stateValid && a.State == AreaStatePartArmed {
			continue
		}
		if armed {
			a.saveState(AreaStateArmed)
		} else {
			a.saveState(AreaStateDisarmed)
		}
	}
	return nil
}
