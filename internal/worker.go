package internal

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"
	"gopkg.in/tomb.v2"
)

// WorkerConfig selects which background loops a BackupWorker runs.
type WorkerConfig struct {
	Workflow  *Workflow
	Poll      bool
	Subscribe bool
}

func (c WorkerConfig) Validate() error {
	if c.Workflow == nil {
		return errors.NotValidf("missing Workflow")
	}
	if !c.Poll && !c.Subscribe {
		return errors.NotValidf("worker with neither polling nor subscription")
	}
	return nil
}

// invokeCatacomb is replaced in tests.
var invokeCatacomb = catacomb.Invoke

// BackupWorker keeps the backup current in the background until killed.
type BackupWorker struct {
	catacomb catacomb.Catacomb
}

func NewBackupWorker(cfg WorkerConfig) (*BackupWorker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var loops []worker.Worker
	if cfg.Subscribe {
		loops = append(loops, newLoopWorker(cfg.Workflow.SubscribeChannelBackups))
	}
	if cfg.Poll {
		loops = append(loops, newLoopWorker(cfg.Workflow.PollPushChannelBackup))
	}
	w := &BackupWorker{}
	if err := invokeCatacomb(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
		Init: loops,
	}); err != nil {
		// The loops are already running and nothing else owns them.
		for _, l := range loops {
			_ = worker.Stop(l)
		}
		return nil, errors.Annotate(err, "starting channel backup worker")
	}
	return w, nil
}

func (w *BackupWorker) loop() error {
	<-w.catacomb.Dying()
	return w.catacomb.ErrDying()
}

// Kill implements worker.Worker.
func (w *BackupWorker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait implements worker.Worker.
func (w *BackupWorker) Wait() error {
	return w.catacomb.Wait()
}

// loopWorker runs one context-driven loop under a tomb.
type loopWorker struct {
	tomb tomb.Tomb
}

func newLoopWorker(run func(context.Context)) *loopWorker {
	w := &loopWorker{}
	w.tomb.Go(func() error {
		run(w.tomb.Context(context.Background()))
		return nil
	})
	return w
}

func (w *loopWorker) Kill() { w.tomb.Kill(nil) }

func (w *loopWorker) Wait() error { return w.tomb.Wait() }
