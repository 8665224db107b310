package internal

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Outcome classifies a restore attempt.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeNotFound
	OutcomePermissionDenied
	OutcomeUnavailable
	OutcomeUnsupported
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// FetchResult is the typed form of FetchChannelBackup. SCB is only set
// for OutcomeFound; Err carries the cause for denied or unavailable.
type FetchResult struct {
	SCB     []byte
	Outcome Outcome
	Err     error
}

// WorkflowConfig holds the collaborators of a Workflow.
type WorkflowConfig struct {
	Strategy Strategy
	Source   Source
	// Transport is optional; without it SubscribeChannelBackups returns at once.
	Transport    Transport
	Clock        clock.Clock
	PollInterval time.Duration
	// OpTimeout bounds every source, permission and backend call.
	OpTimeout time.Duration
	Metrics   *Metrics
	Logger    Logger
}

func (c WorkflowConfig) Validate() error {
	if c.Source == nil {
		return errors.NotValidf("missing Source")
	}
	if c.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if c.PollInterval <= 0 {
		return errors.NotValidf("poll interval %s", c.PollInterval)
	}
	if c.OpTimeout <= 0 {
		return errors.NotValidf("op timeout %s", c.OpTimeout)
	}
	return nil
}

// Workflow moves the daemon's channel backup into platform storage and
// back. Its public operations never fail: backup is best effort and must
// not get in the way of the wallet.
type Workflow struct {
	cfg    WorkflowConfig
	logger Logger
}

func NewWorkflow(cfg WorkflowConfig) (*Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Workflow{cfg: cfg, logger: childLogger(cfg.Logger, "backup")}, nil
}

func (w *Workflow) Strategy() Strategy { return w.cfg.Strategy }

// bounded runs f with the op timeout and returns once it finishes or the
// deadline passes, whichever is first.
func bounded[T any](ctx context.Context, d time.Duration, f func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := f(ctx)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Annotatef(ctx.Err(), "gave up after %s", d)
	}
}

func (w *Workflow) permitted(ctx context.Context) bool {
	ok, err := bounded(ctx, w.cfg.OpTimeout, func(ctx context.Context) (bool, error) {
		return w.cfg.Strategy.Gate.RequestExternalStoragePermission(ctx), nil
	})
	if err != nil {
		w.logger.Infof("permission request did not complete: %v", err)
		return false
	}
	return ok
}

// RequestExternalStoragePermission asks the platform gate for storage
// access. Platforms without a gate report false.
func (w *Workflow) RequestExternalStoragePermission(ctx context.Context) bool {
	if w.cfg.Strategy.Gate == nil {
		return false
	}
	return w.permitted(ctx)
}

// PushChannelBackup copies the daemon's current backup to the platform
// backend. Failures are logged, never returned.
func (w *Workflow) PushChannelBackup(ctx context.Context) {
	s := w.cfg.Strategy
	name := s.backendName()
	if !s.Supported() {
		w.logger.Debugf("no channel backup target on platform %q", s.Platform)
		w.cfg.Metrics.push(name, "unsupported")
		return
	}
	if s.Gate != nil && !w.permitted(ctx) {
		w.logger.Infof("Skipping channel backup due to missing permissions")
		w.cfg.Metrics.push(name, "skipped")
		return
	}
	scb, err := bounded(ctx, w.cfg.OpTimeout, w.cfg.Source.ReadSCB)
	if err != nil {
		w.logger.Errorf("Reading channel backup from daemon failed: %v", err)
		w.cfg.Metrics.push(name, "source_error")
		return
	}
	_, err = bounded(ctx, w.cfg.OpTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Backend.Put(ctx, SCBKey, scb)
	})
	if err != nil {
		w.logger.Errorf("Uploading channel backup to %s storage failed: %v", name, err)
		w.cfg.Metrics.push(name, "put_error")
		return
	}
	w.logger.Debugf("channel backup pushed to %s storage (%d base64 chars)", name, len(scb))
	w.cfg.Metrics.push(name, "ok")
}

// Restore reads back the last pushed backup and says why when there is none.
func (w *Workflow) Restore(ctx context.Context) FetchResult {
	s := w.cfg.Strategy
	res := w.restore(ctx, s)
	w.cfg.Metrics.fetch(s.backendName(), res.Outcome)
	return res
}

func (w *Workflow) restore(ctx context.Context, s Strategy) FetchResult {
	if !s.Supported() {
		return FetchResult{Outcome: OutcomeUnsupported}
	}
	name := s.Backend.Name()
	if s.Gate != nil && !w.permitted(ctx) {
		w.logger.Infof("Skipping channel restore: missing storage permissions")
		return FetchResult{Outcome: OutcomePermissionDenied, Err: errors.Forbiddenf("%s storage", name)}
	}
	scb, err := bounded(ctx, w.cfg.OpTimeout, func(ctx context.Context) (string, error) {
		return s.Backend.Get(ctx, SCBKey)
	})
	if err == nil && scb == "" {
		err = errors.NotFoundf("channel backup")
	}
	switch {
	case errors.Is(err, errors.NotFound):
		w.logger.Infof("No channel backup found in %s storage", name)
		return FetchResult{Outcome: OutcomeNotFound, Err: err}
	case err != nil:
		w.logger.Infof("Failed to read channel backup from %s: %v", name, err)
		return FetchResult{Outcome: OutcomeUnavailable, Err: err}
	}
	raw, err := base64.StdEncoding.DecodeString(scb)
	if err != nil {
		w.logger.Infof("Failed to decode channel backup from %s: %v", name, err)
		return FetchResult{Outcome: OutcomeUnavailable, Err: errors.NotValidf("channel backup encoding (%v)", err)}
	}
	return FetchResult{SCB: raw, Outcome: OutcomeFound}
}

// FetchChannelBackup returns the raw backup bytes, or nil when there is no
// usable backup for any reason.
func (w *Workflow) FetchChannelBackup(ctx context.Context) []byte {
	return w.Restore(ctx).SCB
}

// PollPushChannelBackup pushes now and then every poll interval until ctx
// is done.
func (w *Workflow) PollPushChannelBackup(ctx context.Context) {
	for {
		w.PushChannelBackup(ctx)
		select {
		case <-ctx.Done():
			return
		case <-w.cfg.Clock.After(w.cfg.PollInterval):
		}
	}
}

// SubscribeChannelBackups consumes the daemon backup stream, pushing once
// per data event, until the stream closes or ctx is done.
func (w *Workflow) SubscribeChannelBackups(ctx context.Context) {
	if w.cfg.Transport == nil {
		w.logger.Infof("no backup stream configured; relying on polling")
		return
	}
	stream, err := w.cfg.Transport.Subscribe(ctx, SubscribeChannelBackups)
	if err != nil {
		w.logger.Errorf("Channel backup subscription failed: %v", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		}
	}
}

func (w *Workflow) handleEvent(ctx context.Context, ev Event) {
	w.cfg.Metrics.event(ev.Kind)
	switch ev.Kind {
	case EventData:
		w.PushChannelBackup(ctx)
	case EventError:
		w.logger.Errorf("Channel backup error: %v", ev.Err)
	case EventStatus:
		w.logger.Infof("Channel backup status: %s", ev.Status)
	}
}
