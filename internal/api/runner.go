package api

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Runner executes accepted runs on background goroutines. Submission
// returns immediately; Wait blocks until every launched run has finished,
// used during graceful shutdown.
type Runner struct {
	logger *logrus.Logger
	exec   Executor
	wg     sync.WaitGroup
}

// NewRunner creates a background run executor
func NewRunner(logger *logrus.Logger, exec Executor) *Runner {
	return &Runner{logger: logger, exec: exec}
}

// Launch starts the pipeline for a run in the background. The run owns
// its own context; cancelling an HTTP request never aborts a run.
func (r *Runner) Launch(runID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.exec.Execute(context.Background(), runID); err != nil {
			r.logger.WithError(err).WithField("run_id", runID).Error("Pipeline run failed")
		}
	}()
}

// Wait blocks until all launched runs have completed
func (r *Runner) Wait() {
	r.wg.Wait()
}
