package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// waitState tracks where the render-wait protocol is. The machine is
// deliberately independent of the browser: the load signal and the canvas
// sampler are injected, so the same transitions run under test with fakes.
type waitState int

const (
	stateNavigating waitState = iota
	stateWaitingForLoad
	statePollingStability
	stateSettled
	stateTimedOut
)

func (s waitState) String() string {
	switch s {
	case stateNavigating:
		return "NAVIGATING"
	case stateWaitingForLoad:
		return "WAITING_FOR_LOAD"
	case statePollingStability:
		return "POLLING_STABILITY"
	case stateSettled:
		return "SETTLED"
	case stateTimedOut:
		return "TIMED_OUT"
	}
	return "UNKNOWN"
}

var errRenderTimedOut = errors.New("chart did not stabilize within budget")

// renderWait decides the earliest safe moment to screenshot an
// asynchronously drawn chart: wait for the page-load signal, then poll the
// canvas digest until two samples taken interval apart match.
type renderWait struct {
	loadWait func(ctx context.Context) error
	sample   func(ctx context.Context) (string, error)
	interval time.Duration
	timeout  time.Duration

	state waitState
}

func newRenderWait(loadWait func(context.Context) error, sample func(context.Context) (string, error), interval, timeout time.Duration) *renderWait {
	return &renderWait{
		loadWait: loadWait,
		sample:   sample,
		interval: interval,
		timeout:  timeout,
		state:    stateNavigating,
	}
}

// run drives the machine to SETTLED or TIMED_OUT. The total budget covers
// both the load signal and the stability polling. Only the budget expiring
// is reported as errRenderTimedOut; the caller's own context ending
// propagates untouched so it is never mistaken for a slow chart, and any
// other sampler error passes through unchanged.
func (w *renderWait) run(ctx context.Context) error {
	caller := ctx
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	w.state = stateWaitingForLoad
	if err := w.loadWait(ctx); err != nil {
		return w.classify(caller, ctx, err)
	}

	w.state = statePollingStability
	prev := ""
	havePrev := false
	for {
		digest, err := w.sample(ctx)
		if err != nil {
			return w.classify(caller, ctx, err)
		}

		if havePrev && digest != "" && digest == prev {
			w.state = stateSettled
			slog.Debug("render settled", "digest", digest)
			return nil
		}
		prev = digest
		havePrev = true

		select {
		case <-time.After(w.interval):
		case <-ctx.Done():
			return w.classify(caller, ctx, ctx.Err())
		}
	}
}

// classify attributes a wait failure. The caller's context ending wins over
// everything: that is their cancellation or deadline, not the chart's.
func (w *renderWait) classify(caller, budget context.Context, err error) error {
	if callerErr := caller.Err(); callerErr != nil {
		return callerErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(budget.Err(), context.DeadlineExceeded) {
		w.state = stateTimedOut
		return errRenderTimedOut
	}
	return err
}
