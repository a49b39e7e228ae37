package updater

import (
	"context"
	"time"
)

var newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Run cycles until ctx is cancelled. Between cycles it sleeps for the poll
// interval or until a user request arrives; a request never interrupts a
// running cycle. Cancelling ctx stops the delta-sync tool and ends the loop
// after the current step.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.InfoContext(ctx, "updater started", "install_root", o.opts.InstallRoot, "interval", o.opts.Interval)
	for {
		if ctx.Err() != nil {
			o.log.InfoContext(ctx, "updater stopping")
			return nil
		}
		o.RunCycle(ctx, o.waker.Take())

		fired, stop := newTimer(o.opts.Interval)
		select {
		case <-ctx.Done():
			stop()
		case <-fired:
		case <-o.waker.C():
			stop()
		}
	}
}
