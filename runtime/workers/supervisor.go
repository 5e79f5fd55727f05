package workers

import (
	"care-chat/contract"
	"care-chat/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const DefaultRestartInterval = 200 * time.Millisecond

// Supervisor runs background workers of the chat server.
// A worker that panics or fails is restarted after restartInterval,
// one that returns nil is considered done.
// Cancelling the parent context (or calling Stop) ends every worker and Run
// returns once all of them have.
type Supervisor struct {
	Cancel          context.CancelFunc // Stops every supervised worker
	wg              *sync.WaitGroup    // One entry per running worker goroutine
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run starts every added worker and blocks until all of them returned.
func (s *Supervisor) Run(ctx context.Context) {
	// 1. Workers get a child of the parent ctx
	// The parent (main) cancelling stops them all.
	// If WE call s.Cancel(), only our children stop, not the parent.
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	// Release the child context whatever way Run exits
	defer s.Cancel()

	// 2. One goroutine per worker, each with its own restart loop

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs worker in its own goroutine and keeps it alive.
// A panic in one worker never reaches the supervisor or the other workers.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			// Never (re)start a worker once shutdown began
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				// Only this call is retried after a crash,
				// the supervision goroutine itself survives it
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			// An error caused by cancellation is a stop, not a crash
			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Shutdown wins over the pending restart
				return
			case <-time.After(s.restartInterval):
				// Delay elapsed with ctx still alive, run the worker again
			}
		}
	}()
}

// Stop cancels every worker listening on ctx.Done.
// Run returns once they are all gone.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
