package texecom

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Callbacks is the consumer callback surface from spec.md §6. Per the
// Design Notes in spec.md §9 ("replace stored function objects with a
// small trait/interface per event kind"), this is a struct of function
// fields rather than one big interface: a consumer wires only the events
// it cares about and leaves the rest nil, same as the teacher's
// `Station` interface being satisfied piecemeal by a single concrete type
// but without forcing every consumer to implement every method.
type Callbacks struct {
	OnAlive       func()
	OnAreaEvent   func(area Area)
	OnZoneEvent   func(zone Zone)
	OnAreaDetails func(area Area, panelType string, zoneCount int)
	OnZoneDetails func(zone Zone, panelType string, zoneCount int)
	OnLogEvent    func(message string)
}

func (c Callbacks) fireAlive() {
	if c.OnAlive != nil {
		c.OnAlive()
	}
}
func (c Callbacks) fireAreaEvent(a *Area) {
	if c.OnAreaEvent != nil {
		c.OnAreaEvent(*a)
	}
}
func (c Callbacks) fireZoneEvent(z *Zone) {
	if c.OnZoneEvent != nil {
		c.OnZoneEvent(*z)
	}
}
func (c Callbacks) fireAreaDetails(a *Area, panelType string, zoneCount int) {
	if c.OnAreaDetails != nil {
		c.OnAreaDetails(*a, panelType, zoneCount)
	}
}
func (c Callbacks) fireZoneDetails(z *Zone, panelType string, zoneCount int) {
	if c.OnZoneDetails != nil {
		c.OnZoneDetails(*z, panelType, zoneCount)
	}
}
func (c Callbacks) fireLogEvent(message string) {
	if c.OnLogEvent != nil {
		c.OnLogEvent(message)
	}
}

// Notifier is the injectable connection-lost/regained hook from spec.md
// §9 ("Expose this as an injectable notifier trait; the built-in
// implementation may invoke a subprocess").
type Notifier interface {
	NotifyConnectionLost()
	NotifyConnectionRegained()
}

// MetricsSink receives protocol-engine counters. A nil sink is valid;
// every method is a no-op in that case (see pkgs/metrics for the
// Prometheus-backed implementation).
type MetricsSink interface {
	CommandSent()
	CommandRetried()
	CommandTimedOut()
	Reconnected()
	LoginFailed()
	FrameCRCError()
	Heartbeat()
	ZonesActive(n int)
}

// noopMetrics is used when Client is constructed without a MetricsSink.
type noopMetrics struct{}

func (noopMetrics) CommandSent()      {}
func (noopMetrics) CommandRetried()   {}
func (noopMetrics) CommandTimedOut()  {}
func (noopMetrics) Reconnected()      {}
func (noopMetrics) LoginFailed()      {}
func (noopMetrics) FrameCRCError()    {}
func (noopMetrics) Heartbeat()        {}
func (noopMetrics) ZonesActive(int)   {}

// noopNotifier is used when Client is constructed without a Notifier.
type noopNotifier struct{}

func (noopNotifier) NotifyConnectionLost()     {}
func (noopNotifier) NotifyConnectionRegained() {}

// errLoginNAK signals that the panel rejected the UDL password; the
// session must be torn down (spec.md §4.3/§7).
var errLoginNAK = errors.New("texecom: login rejected (NAK)")

// errTimeout signals a command-engine timeout: either the underlying
// socket read timed out, or the cumulative per-call deadline elapsed
// while processing a run of unsolicited messages (spec.md §4.3).
var errTimeout = errors.New("texecom: timeout waiting for response")

// Client is a single-panel Texecom Connect session: the protocol engine
// described across spec.md §4. One Client talks to exactly one panel.
type Client struct {
	host        string
	port        uint16
	udlPassword string

	transport *transport
	store     *entityStore
	shape     PanelShape

	callbacks           Callbacks
	notifier            Notifier
	metrics             MetricsSink
	requestOutputEvents bool
	aliveHeartbeat      time.Duration
	log                 *logrus.Entry

	nextSeq         byte
	lastSentSeq     byte
	lastReceivedSeq int // -1 means "none received yet"
	lastCommand     []byte
	lastCommandTime time.Time

	timeLastHeartbeat time.Time
	lastIdleCommand   int
	lastIdleAt        time.Time
	siteDataChanged   bool

	queue *commandQueue

	sessionID uuid.UUID
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithNotifier installs a connection-lost/regained notifier.
func WithNotifier(n Notifier) Option { return func(c *Client) { c.notifier = n } }

// WithMetrics installs a MetricsSink.
func WithMetrics(m MetricsSink) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger installs a logrus logger (defaults to logrus.StandardLogger()).
func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) { c.log = l.WithField("component", "texecom") }
}

// WithOutputEvents controls whether OUTPUT events are requested from the
// panel (spec.md §6 `enable_output_events`).
func WithOutputEvents(enabled bool) Option {
	return func(c *Client) { c.requestOutputEvents = enabled }
}

// WithAliveHeartbeat overrides the default 300s alive-callback interval
// (spec.md §6 `set_alive_heartbeat`).
func WithAliveHeartbeat(d time.Duration) Option {
	return func(c *Client) { c.aliveHeartbeat = d }
}

// New constructs a Client for one panel. host/port/udlPassword are
// supplied at construction per spec.md §6.
func New(host string, port uint16, udlPassword string, callbacks Callbacks, opts ...Option) *Client {
	c := &Client{
		host:                host,
		port:                port,
		udlPassword:         udlPassword,
		store:               newEntityStore(),
		callbacks:           callbacks,
		notifier:            noopNotifier{},
		metrics:             noopMetrics{},
		requestOutputEvents: true,
		aliveHeartbeat:      defaultAliveHeartbeat,
		log:                 logrus.NewEntry(logrus.StandardLogger()),
		lastReceivedSeq:     -1,
		queue:               newCommandQueue(),
		timeLastHeartbeat:   time.Now(),
		lastIdleAt:          time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnableOutputEvents toggles OUTPUT event reporting (spec.md §6).
func (c *Client) EnableOutputEvents(yes bool) { c.requestOutputEvents = yes }

// SetAliveHeartbeat overrides the alive-callback interval (spec.md §6).
func (c *Client) SetAliveHeartbeat(d time.Duration) { c.aliveHeartbeat = d }

// Zones returns a snapshot of every known zone.
func (c *Client) Zones() []*Zone { return c.store.AllZones() }

// Zone returns the zone for number, creating it on first reference.
func (c *Client) Zone(number int) *Zone { return c.store.zone(number) }

// Area returns the area for number, creating it on first reference.
func (c *Client) Area(number int) *Area { return c.store.area(number) }

// User returns the user for slot number, or nil if that slot hasn't been
// loaded (or doesn't exist on this panel). Unlike Zone/Area, users are not
// created on demand: they're enumerated once by the Topology Loader.
func (c *Client) User(number int) *User { return c.store.user(number) }

// Users returns a snapshot of every known user slot, including the
// synthesised slot 0 ("Engineer") once topology has loaded (spec.md §3).
func (c *Client) Users() []*User { return c.store.AllUsers() }

// Shape returns the panel shape derived from the last successful topology load.
func (c *Client) Shape() PanelShape { return c.shape }

// nextSequence advances the mod-256 outgoing sequence counter (spec.md §3).
func (c *Client) nextSequence() byte {
	seq := c.nextSeq
	c.nextSeq++ // wraps naturally: byte arithmetic is mod 256
	return seq
}

// alive fires the heartbeat callback and resets the heartbeat clock
// (spec.md §4.6/§6 `on_alive`).
func (c *Client) alive() {
	c.timeLastHeartbeat = time.Now()
	c.log.Debug("alive ok")
	c.metrics.Heartbeat()
	c.callbacks.fireAlive()
}

// EventLoop is the Main Loop of spec.md §4.7: it blocks, reconnecting and
// re-logging-in forever until ctx-less process exit (the caller owns
// process signal handling, per spec.md §5).
func (c *Client) EventLoop() error {
	lastConnectedAt := time.Now()
	notifiedConnectionLoss := false
	wasConnected := false

	for {
		if wasConnected {
			lastConnectedAt = time.Now()
			wasConnected = false
			notifiedConnectionLoss = false
			c.log.Info("connection lost")
		}
		if time.Since(lastConnectedAt) >= connectionLostGrace && !notifiedConnectionLoss {
			c.log.Warn("connection lost for over 60 seconds")
			c.notifier.NotifyConnectionLost()
			notifiedConnectionLoss = true
		}

		c.transport = newTransport(c.host, c.port)
		c.sessionID = uuid.New()
		if err := c.transport.connect(); err != nil {
			c.log.WithError(err).Warn("connect failed, retrying in 5s")
			time.Sleep(reconnectDelay)
			continue
		}

		if err := c.login(); err != nil {
			c.log.WithError(err).Warn("login failed, closing socket and retrying in 5s")
			c.metrics.LoginFailed()
			time.Sleep(reconnectDelay)
			c.transport.close()
			continue
		}
		c.log.Info("login successful")

		if err := c.setEventMessages(); err != nil {
			c.log.WithError(err).Warn("set event messages failed, closing socket")
			c.transport.close()
			continue
		}

		wasConnected = true
		c.metrics.Reconnected()
		if notifiedConnectionLoss {
			c.log.Info("connection regained")
			c.notifier.NotifyConnectionRegained()
		}

		if err := c.loadSiteData(); err != nil {
			c.log.WithError(err).Warn("failed to load site data, closing socket")
			c.transport.close()
			continue
		}
		c.log.Info("got all areas/zones/users; waiting for events")

		c.innerLoop()
	}
}

// innerLoop is the per-connection receive loop of spec.md §4.7: it ticks
// zone smoothing, reloads topology on a site-data-changed signal, and
// otherwise waits for events/idle probes until the connection breaks.
func (c *Client) innerLoop() {
	for c.transport.connected() {
		active := 0
		for _, z := range c.store.AllZones() {
			z.tick()
			if z.Active {
				active++
			}
		}
		c.metrics.ZonesActive(active)
		if c.siteDataChanged {
			c.siteDataChanged = false
			if err := c.loadSiteData(); err != nil {
				c.log.WithError(err).Warn("failed to reload site data")
			}
		}

		_, err := c.recvLoop(-1, 0, false)
		if err == nil {
			continue
		}
		if errors.Is(err, errTimeout) {
			// No command was outstanding, so a timeout is expected; keep waiting.
			continue
		}
		c.log.WithError(err).Warn("connection error, returning to outer reconnect loop")
		return
	}
}

// login issues CMD_LOGIN with the configured UDL password (spec.md §4.7).
func (c *Client) login() error {
	payload, err := c.sendCommand(cmdLogin, []byte(c.udlPassword))
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("texecom: empty login response")
	}
	switch payload[0] {
	case respACK:
		return nil
	case respNAK:
		c.log.Warn("NAK response from panel")
		return errLoginNAK
	default:
		return fmt.Errorf("texecom: unexpected login ack payload: %v", payload)
	}
}

// Connect opens a short-lived session for one-shot CLI usage (arm/disarm/
// reset/status commands issued outside of EventLoop): dial, log in, enable
// event messages, and load the topology once, without entering the
// reconnect/idle loop.
func (c *Client) Connect() error {
	c.transport = newTransport(c.host, c.port)
	c.sessionID = uuid.New()
	if err := c.transport.connect(); err != nil {
		return err
	}
	if err := c.login(); err != nil {
		c.transport.close()
		return err
	}
	if err := c.setEventMessages(); err != nil {
		c.transport.close()
		return err
	}
	if err := c.loadSiteData(); err != nil {
		c.transport.close()
		return err
	}
	return nil
}

// Disconnect closes a session opened with Connect.
func (c *Client) Disconnect() {
	if c.transport != nil {
		c.transport.close()
	}
}

// setEventMessages issues CMD_SETEVENTMESSAGES with the bitmask from
// spec.md §6: zone|area|user|log, plus output when requested.
func (c *Client) setEventMessages() error {
	events := eventFlagZone | eventFlagArea | eventFlagUser | eventFlagLog
	if c.requestOutputEvents {
		events |= eventFlagOutput
	}
	body := []byte{byte(events), byte(events >> 8)}
	payload, err := c.sendCommand(cmdSetEventMessages, body)
	if err != nil {
		return err
	}
	if len(payload) == 0 || payload[0] != respACK {
		return fmt.Errorf("texecom: unexpected set-event-messages ack payload: %v", payload)
	}
	return nil
}
