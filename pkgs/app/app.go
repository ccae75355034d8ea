package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/texecom/connect/pkgs/config"
	"github.com/texecom/connect/pkgs/metrics"
	"github.com/texecom/connect/pkgs/notify"
	"github.com/texecom/connect/pkgs/output"
	"github.com/texecom/connect/pkgs/syntax"
	"github.com/texecom/connect/pkgs/texecom"
)

// App is the orchestration layer binding configuration, the protocol
// engine and the CLI together. Every print goes through P so command
// implementations never touch stdout directly.
type App struct {
	Config *config.Configuration
	Debug  bool
	P      output.Printer

	client *texecom.Client
}

// Initialize parses configuration and sets the logging level; it runs
// after cobra has parsed flags, so -v/--debug is already known.
func (a *App) Initialize() error {
	if a.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	logrus.Debug("reading configuration")
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("cannot initialize app: %w", err)
	}
	a.Config = cfg

	if !a.Debug {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err == nil {
			logrus.SetLevel(level)
		}
	}
	return nil
}

// newClient builds a texecom.Client wired to this app's configuration,
// logging, metrics registry and notifier.
func (a *App) newClient(callbacks texecom.Callbacks) *texecom.Client {
	opts := []texecom.Option{
		texecom.WithLogger(logrus.StandardLogger()),
		texecom.WithOutputEvents(a.Config.OutputEvents),
		texecom.WithAliveHeartbeat(a.Config.Heartbeat),
		texecom.WithNotifier(notify.New(a.Config.Notify.LostCommand, a.Config.Notify.RegainedCommand, nil)),
	}
	if a.Config.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		sink := metrics.NewSink(reg)
		opts = append(opts, texecom.WithMetrics(sink))
		go func() {
			logrus.WithField("addr", a.Config.MetricsAddr).Info("serving metrics")
			if err := metrics.Serve(a.Config.MetricsAddr, reg); err != nil {
				logrus.WithError(err).Error("metrics server stopped")
			}
		}()
	}
	return texecom.New(a.Config.Panel.Host, a.Config.Panel.Port, a.Config.Panel.UDLPassword, callbacks, opts...)
}

// RunAction starts the long-running protocol engine, printing every
// callback-driven event through P, and blocks until EventLoop returns
// (which per spec.md §4.7 it never does under normal operation).
func (a *App) RunAction() error {
	a.client = a.newClient(texecom.Callbacks{
		OnAlive: func() {
			logrus.Debug("heartbeat ok")
		},
		OnAreaEvent: func(area texecom.Area) {
			a.P.Printf("area %d (%s): %s\n", area.Number, area.Text, area.StateText())
		},
		OnZoneEvent: func(zone texecom.Zone) {
			a.P.Printf("zone %d (%s): %s\n", zone.Number, zone.Text, zone.StateText)
		},
		OnAreaDetails: func(area texecom.Area, panelType string, zoneCount int) {
			logrus.WithField("panel", panelType).WithField("zones", zoneCount).
				Debugf("area %d: %s", area.Number, area.Text)
		},
		OnZoneDetails: func(zone texecom.Zone, panelType string, zoneCount int) {
			logrus.WithField("panel", panelType).WithField("zones", zoneCount).
				Debugf("zone %d: %s (%s)", zone.Number, zone.Text, zone.ZoneTypeText())
		},
		OnLogEvent: func(message string) {
			a.P.Printf("log: %s\n", message)
		},
	})
	return a.client.EventLoop()
}

// ArmAction connects, fully arms the given areas, and disconnects.
func (a *App) ArmAction(areas string) error {
	return a.oneShotWithAreas(areas, func(c *texecom.Client, bitmap []byte) error { return c.Arm(bitmap) })
}

// PartArmAction connects, part-1-arms the given areas, and disconnects.
func (a *App) PartArmAction(areas string) error {
	return a.oneShotWithAreas(areas, func(c *texecom.Client, bitmap []byte) error { return c.PartArm(bitmap) })
}

// DisarmAction connects, disarms the given areas, and disconnects.
func (a *App) DisarmAction(areas string) error {
	return a.oneShotWithAreas(areas, func(c *texecom.Client, bitmap []byte) error { return c.Disarm(bitmap) })
}

// ResetAction connects, resets the given areas, and disconnects.
func (a *App) ResetAction(areas string) error {
	return a.oneShotWithAreas(areas, func(c *texecom.Client, bitmap []byte) error { return c.Reset(bitmap) })
}

// oneShotWithAreas connects (which also loads the topology, giving us the
// panel's area-bitmap size), parses the area-number list against that
// size, and runs fn against the connected client.
func (a *App) oneShotWithAreas(areasRaw string, fn func(*texecom.Client, []byte) error) error {
	c := a.newClient(texecom.Callbacks{})
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Disconnect()

	areas, err := syntax.ParseAreaString(areasRaw)
	if err != nil {
		return err
	}
	bitmap, err := syntax.AreasToBitmap(areas, c.Shape().AreaBitmapSize)
	if err != nil {
		return err
	}
	return fn(c, bitmap)
}

// StatusAction connects, loads the current topology, and prints a summary
// of every area and zone through P.
func (a *App) StatusAction() error {
	c := a.newClient(texecom.Callbacks{})
	if err := c.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Disconnect()

	shape := c.Shape()
	a.P.Printf("panel: %s (firmware %s)\n", shape.PanelType, shape.FirmwareVersion)
	for number := 1; number <= shape.NumberOfAreas; number++ {
		area := c.Area(number)
		a.P.Printf("area %d: %s [%s]\n", area.Number, area.Text, area.StateText())
	}
	for _, zone := range c.Zones() {
		a.P.Printf("zone %d: %s (%s) state=%s\n", zone.Number, zone.Text, zone.ZoneTypeText(), zone.StateText)
	}
	return nil
}
