// Package zombie provides a background reaper for processes that end up
// parented to the caller as pid 1 or subreaper of a namespace, generalized
// from the single-purpose WaitChildren helper faketree built for its own
// exit-code propagation needs.
package zombie

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ExitStatus wraps the exit code or signal of a reaped process.
type ExitStatus struct {
	Pid      int
	Code     int
	Signaled bool
	Signal   unix.Signal
}

// Reaper waits for every child of the calling process to exit, forwarding
// a notification per pid. It is meant to run in its own goroutine inside a
// process acting as an init for a PID namespace, or after
// prctl(PR_SET_CHILD_SUBREAPER), where indirect descendants get reparented
// to it and would otherwise accumulate as zombies.
type Reaper struct {
	id     string
	notify chan ExitStatus
	log    logrus.FieldLogger
}

// New creates a Reaper. notify, if non-nil, receives one ExitStatus per
// reaped process; sends are best-effort and dropped if the channel isn't
// being drained fast enough, since a reaper that blocks on a slow consumer
// would itself start accumulating zombies.
func New(notify chan ExitStatus, log logrus.FieldLogger) *Reaper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reaper{id: uuid.NewString(), notify: notify, log: log}
}

// Run blocks, reaping children until wait4 reports ECHILD (no children
// left to wait for), then returns nil. Any other wait4 error is returned
// as-is.
func (r *Reaper) Run() error {
	log := r.log.WithField("reaper", r.id)
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, 0, nil)
		if err != nil {
			if errors.Is(err, unix.ECHILD) {
				log.Debug("no children left to reap")
				return nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		if pid == 0 || status.Stopped() || status.Continued() {
			continue
		}

		es := ExitStatus{Pid: pid}
		if status.Signaled() {
			es.Signaled = true
			es.Signal = status.Signal()
			log.WithField("pid", pid).WithField("signal", es.Signal).Info("reaped process killed by signal")
		} else {
			es.Code = status.ExitStatus()
			log.WithField("pid", pid).WithField("code", es.Code).Debug("reaped process")
		}

		if r.notify != nil {
			select {
			case r.notify <- es:
			default:
			}
		}
	}
}

// BecomeSubreaper marks the calling process as a child subreaper via
// prctl(PR_SET_CHILD_SUBREAPER), so descendants reparented away from a
// dying intermediate process land here instead of on pid 1.
func BecomeSubreaper() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}
