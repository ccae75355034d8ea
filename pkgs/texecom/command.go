package texecom

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// commandQueue is the externally-fed FIFO of arm/disarm/reset requests
// described in spec.md §5/§9: a concurrent-safe queue since the consumer
// (e.g. an MQTT bridge) may enqueue from another goroutine, while the
// protocol goroutine is the sole drainer.
type commandQueue struct {
	mu      sync.Mutex
	entries []queuedCommand
}

type queuedCommand struct {
	cmd        byte
	armType    byte
	areaBitmap []byte
}

func newCommandQueue() *commandQueue { return &commandQueue{} }

func (q *commandQueue) push(e queuedCommand) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
}

// pop removes and returns the oldest entry, FIFO order (spec.md §5).
func (q *commandQueue) pop() (queuedCommand, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return queuedCommand{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

func (q *commandQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// RequestArm enqueues a full-arm request for the given area bitmap
// (spec.md §6 `request_arm`).
func (c *Client) RequestArm(areaBitmap []byte) {
	c.queue.push(queuedCommand{cmd: cmdArmAreas, armType: armingTypeFull, areaBitmap: areaBitmap})
}

// RequestPartArm enqueues a part-1-arm request (spec.md §6 `request_part_arm`).
func (c *Client) RequestPartArm(areaBitmap []byte) {
	c.queue.push(queuedCommand{cmd: cmdArmAreas, armType: armingTypePart1, areaBitmap: areaBitmap})
}

// RequestDisarm enqueues a disarm request (spec.md §6 `request_disarm`).
func (c *Client) RequestDisarm(areaBitmap []byte) {
	c.queue.push(queuedCommand{cmd: cmdDisarmAreas, areaBitmap: areaBitmap})
}

// RequestReset enqueues a reset request (spec.md §6 `request_reset`).
func (c *Client) RequestReset(areaBitmap []byte) {
	c.queue.push(queuedCommand{cmd: cmdResetAreas, areaBitmap: areaBitmap})
}

// sendCommand is the Command Engine contract of spec.md §4.3:
// send(cmd, body) -> payload | error, with up to commandRetries identical
// resends on timeout and interleaved message handling while waiting.
func (c *Client) sendCommand(cmd byte, body []byte) ([]byte, error) {
	full := make([]byte, 0, len(body)+1)
	full = append(full, cmd)
	full = append(full, body...)

	seq := c.nextSequence()
	c.lastSentSeq = seq
	frameBytes := encodeFrame(frameCommand, seq, full)

	if err := c.transport.send(frameBytes); err != nil {
		return nil, fmt.Errorf("texecom: send command 0x%02x: %w", cmd, err)
	}
	c.lastCommand = frameBytes
	c.lastCommandTime = time.Now()
	c.metrics.CommandSent()

	retries := commandRetries
	for {
		rawBody, err := c.recvLoop(int(seq), cmd, true)
		if err == nil {
			c.lastCommand = nil
			return rawBody, nil
		}
		if errors.Is(err, errTimeout) {
			if retries == 0 {
				c.lastCommand = nil
				c.metrics.CommandTimedOut()
				return nil, fmt.Errorf("texecom: command 0x%02x timed out after %d retries", cmd, commandRetries)
			}
			retries--
			c.metrics.CommandRetried()
			c.log.WithField("cmd", fmt.Sprintf("0x%02x", cmd)).Debug("timeout waiting for response, resending")
			if err := c.transport.send(c.lastCommand); err != nil {
				c.lastCommand = nil
				return nil, fmt.Errorf("texecom: resend command 0x%02x: %w", cmd, err)
			}
			c.lastCommandTime = time.Now()
			continue
		}
		c.lastCommand = nil
		return nil, err
	}
}

// recvLoop is the shared receive-until-response loop of spec.md §4.3. When
// hasOutstanding is true it waits for a RESPONSE frame whose sequence
// equals expectSeq and whose echoed opcode equals cmd, returning the
// payload with that opcode byte stripped. When false (the idle/main-loop
// path) expectSeq is ignored (pass -1, cmd is irrelevant) and it runs
// idle-scheduler work between reads, returning errTimeout once
// commandTimeout has elapsed with nothing to report.
func (c *Client) recvLoop(expectSeq int, cmd byte, hasOutstanding bool) ([]byte, error) {
	deadline := time.Now().Add(commandTimeout)
	for {
		if time.Now().After(deadline) {
			return nil, errTimeout
		}

		if !hasOutstanding {
			if err := c.runIdleStep(); err != nil {
				return nil, err
			}
		}
		if time.Since(c.timeLastHeartbeat) > c.aliveHeartbeat {
			c.alive()
		}

		header, err := c.transport.recv(lengthHeader)
		if err != nil {
			if isTimeout(err) {
				return nil, errTimeout
			}
			c.transport.close()
			return nil, fmt.Errorf("texecom: header read: %w", err)
		}

		switch classifySentinel(header) {
		case sentinelDropped:
			c.log.Warn("panel has forcibly dropped connection, possibly due to inactivity")
			c.transport.close()
			return nil, fmt.Errorf("texecom: panel dropped connection")
		case sentinelHangup:
			c.log.Warn("panel attempted modem hangup; connected too soon")
			c.transport.close()
			return nil, fmt.Errorf("texecom: panel attempted hangup")
		}
		if len(header) == 0 {
			c.log.Info("panel has closed connection")
			c.transport.close()
			return nil, fmt.Errorf("texecom: connection closed by panel")
		}
		if len(header) < lengthHeader {
			c.log.WithField("bytes", len(header)).Warn("short header received, ignoring")
			continue
		}

		typ, length, seq, err := decodeHeader(header)
		if err != nil {
			c.log.WithError(err).Warn("unexpected frame start byte")
			c.transport.close()
			return nil, err
		}

		expectedBodyLen := length - lengthHeader
		payloadAndCRC, err := c.transport.recv(expectedBodyLen)
		if err != nil && !isTimeout(err) {
			c.transport.close()
			return nil, fmt.Errorf("texecom: body read: %w", err)
		}
		if len(payloadAndCRC) < expectedBodyLen {
			c.log.WithField("got", len(payloadAndCRC)).WithField("want", expectedBodyLen).
				Warn("ignoring message, payload shorter than expected")
			continue
		}

		body, err := decodeBody(header, payloadAndCRC)
		if err != nil {
			// CRC mismatch: discard the frame and let the retry timer do its
			// work (spec.md §4.1/§7) rather than failing the command outright.
			c.log.WithError(err).Warn("frame CRC mismatch, discarding")
			c.metrics.FrameCRCError()
			continue
		}

		switch typ {
		case frameResponse:
			if int(seq) != expectSeq {
				c.log.WithField("expected", expectSeq).WithField("actual", seq).
					Debug("incorrect response sequence, ignoring")
				continue
			}
			if len(body) == 0 {
				c.log.Warn("empty response frame, ignoring")
				continue
			}
			echoedCmd, payload := body[0], body[1:]
			if echoedCmd != cmd {
				if echoedCmd == cmdLogin && len(payload) > 0 && payload[0] == respNAK {
					c.log.Warn("received login NAK from panel; session has timed out and needs to be restarted")
					c.transport.close()
					return nil, errLoginNAK
				}
				c.log.WithField("expected", fmt.Sprintf("0x%02x", cmd)).
					WithField("actual", fmt.Sprintf("0x%02x", echoedCmd)).
					Warn("response for unexpected command id")
				return nil, fmt.Errorf("texecom: response opcode mismatch: expected 0x%02x, got 0x%02x", cmd, echoedCmd)
			}
			return payload, nil

		case frameMessage:
			if !c.handleMessageSequence(seq) {
				continue
			}
			c.dispatchMessage(body)
			continue

		case frameCommand:
			c.log.Warn("received command frame unexpectedly")
			c.transport.close()
			return nil, fmt.Errorf("texecom: protocol violation: received command frame from panel")

		default:
			c.log.WithField("type", byte(typ)).Warn("unknown frame type")
			continue
		}
	}
}

// handleMessageSequence applies the out-of-order/duplicate rules for
// unsolicited MSG frames from spec.md §4.3: duplicates (same seq as the
// last message) are dropped outright and return false; anything else is
// processed even if it skips or goes backwards, with only a warning logged.
func (c *Client) handleMessageSequence(seq byte) bool {
	if c.lastReceivedSeq != -1 {
		next := (c.lastReceivedSeq + 1) % 256
		if int(seq) == c.lastReceivedSeq {
			c.log.WithField("seq", seq).Debug("ignoring duplicate message sequence")
			return false
		} else if int(seq) != next {
			c.log.WithField("expected", next).WithField("actual", seq).
				Warn("message sequence out of order, processing anyway")
		}
	}
	c.lastReceivedSeq = int(seq)
	return true
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
