package notify

import (
	"os/exec"

	"github.com/sirupsen/logrus"
)

// ShellNotifier implements texecom.Notifier by invoking a shell command on
// each transition, the default "injectable notifier" mechanism spec.md §9
// asks for. Either command may be empty, in which case that transition is
// silently skipped.
type ShellNotifier struct {
	LostCommand     string
	RegainedCommand string
	log             *logrus.Entry
}

// New constructs a ShellNotifier. log may be nil, in which case the
// standard logger is used.
func New(lostCommand, regainedCommand string, log *logrus.Entry) *ShellNotifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ShellNotifier{LostCommand: lostCommand, RegainedCommand: regainedCommand, log: log}
}

func (n *ShellNotifier) NotifyConnectionLost()     { n.run(n.LostCommand) }
func (n *ShellNotifier) NotifyConnectionRegained() { n.run(n.RegainedCommand) }

func (n *ShellNotifier) run(command string) {
	if command == "" {
		return
	}
	cmd := exec.Command("/bin/sh", "-c", command)
	if output, err := cmd.CombinedOutput(); err != nil {
		n.log.WithError(err).WithField("command", command).WithField("output", string(output)).
			Warn("notify command failed")
	}
}
