package pipeline

import (
	"context"

	"github.com/backmassage/imgshift/internal/registry"
)

// Job is a save action running in the background.
type Job struct {
	cancel   context.CancelFunc
	done     chan struct{}
	progress chan Progress

	outcome Outcome
	err     error
}

// Start runs SaveAll on its own goroutine. deps.Progress, if set, is still
// called; Job.Progress delivers the same events on a channel.
func Start(ctx context.Context, inputs []registry.InputFile, req Request, deps Deps) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: make(chan Progress, len(inputs)),
	}

	user := deps.Progress
	deps.Progress = func(p Progress) {
		if user != nil {
			user(p)
		}
		select {
		case j.progress <- p:
		default:
		}
	}

	go func() {
		defer close(j.done)
		defer close(j.progress)
		defer cancel()
		j.outcome, j.err = SaveAll(ctx, inputs, req, deps)
	}()
	return j
}

// Wait blocks until the job finishes and returns what SaveAll returned.
func (j *Job) Wait() (Outcome, error) {
	<-j.done
	return j.outcome, j.err
}

// Done is closed when the job finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the job before its next file. Files already written stay.
func (j *Job) Cancel() { j.cancel() }

// Progress delivers one event per finished input and is closed when the job
// ends. The channel is buffered for the whole batch, so reading it is optional.
func (j *Job) Progress() <-chan Progress { return j.progress }
