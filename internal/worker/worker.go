// Package worker drains the job queue and runs each job's handler.
package worker

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/personae/internal/events"
	"github.com/rcliao/personae/internal/memory"
	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/reaction"
)

// DefaultPollInterval is how long Run sleeps when the queue is empty.
const DefaultPollInterval = 500 * time.Millisecond

// Store is the persistence the worker needs.
type Store interface {
	events.Store
	PopJob(ctx context.Context) (*model.Job, error)
	UnshiftJob(ctx context.Context, payload model.JobPayload) (model.JobID, error)
	MarkJobFinished(ctx context.Context, id model.JobID) error
	SendMessage(ctx context.Context, msg model.NewMessage) (model.MessageID, error)
	GetMessageByID(ctx context.Context, id model.MessageID) (*model.Message, error)
	MarkMessageRead(ctx context.Context, id model.MessageID) error
	GetLatestSnapshot(ctx context.Context, id model.SceneID) (*model.SceneSnapshot, error)
	GetSceneCurrentParticipants(ctx context.Context, id model.SceneID) ([]model.SceneParticipation, error)
	GetLatestIdentity(ctx context.Context, id model.PersonID) (*model.PersonIdentity, error)
	GetLatestStateOfMind(ctx context.Context, id model.PersonID) (*model.StateOfMind, error)
}

// Memories recalls and forms memories.
type Memories interface {
	BuildQueryPrompt(ctx context.Context, q memory.QueryContext) (string, error)
	SearchMemories(ctx context.Context, prompt string, limit int, person *model.PersonID) ([]model.MemoryMatch, error)
	MaybeCreateMemoriesFromDescription(ctx context.Context, personName, description string) ([]model.MemoryID, error)
}

// Reactor decides what a person does.
type Reactor interface {
	GetReaction(ctx context.Context, memories []string, identity, stateOfMind, situation string) ([]reaction.Action, error)
}

// Options configures a Worker.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Out receives Ping output. Defaults to os.Stdout.
	Out io.Writer
	// Now defaults to time.Now.
	Now func() time.Time
	// Seed produces the shuffle seed of each scene broadcast. Defaults to
	// a random value.
	Seed func() uint64
}

// Worker processes jobs one at a time.
type Worker struct {
	store    Store
	events   *events.Assembler
	memories Memories
	reactor  Reactor
	log      *zap.Logger

	poll time.Duration
	out  io.Writer
	now  func() time.Time
	seed func() uint64
}

// New creates a Worker. A nil logger disables logging.
func New(s Store, mem Memories, r Reactor, opts Options, logger *zap.Logger) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == nil {
		opts.Seed = rand.Uint64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:    s,
		events:   events.New(s),
		memories: mem,
		reactor:  r,
		log:      logger,
		poll:     opts.PollInterval,
		out:      opts.Out,
		now:      opts.Now,
		seed:     opts.Seed,
	}
}

// Run drains the queue until ctx is cancelled, sleeping PollInterval
// whenever it is empty. Handler failures are logged and do not stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker started", zap.Duration("poll_interval", w.poll))
	defer w.log.Info("worker stopped")

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		for ctx.Err() == nil {
			job, _ := w.RunOnce(ctx)
			if job == nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce pops and processes at most one job. It returns the job (nil when
// the queue was empty) and the handler's error. The job is marked finished
// whether or not the handler succeeded, including a claimed job whose
// payload could not be decoded.
func (w *Worker) RunOnce(ctx context.Context) (*model.Job, error) {
	job, err := w.store.PopJob(ctx)
	if job == nil {
		if err != nil {
			w.log.Error("pop job", zap.Error(err))
		}
		return nil, err
	}

	log := w.log.With(zap.Stringer("job_id", job.ID), zap.String("kind", string(job.Kind())))
	log.Debug("job started")

	start := time.Now()
	herr := err
	if herr == nil {
		herr = w.handle(ctx, job)
	}
	if herr != nil {
		log.Error("job failed", zap.Error(herr), zap.Duration("elapsed", time.Since(start)))
	} else {
		log.Debug("job finished", zap.Duration("elapsed", time.Since(start)))
	}

	if err := w.store.MarkJobFinished(context.WithoutCancel(ctx), job.ID); err != nil {
		log.Error("mark job finished", zap.Error(err))
		if herr == nil {
			herr = err
		}
	}
	return job, herr
}

func (w *Worker) handle(ctx context.Context, job *model.Job) error {
	switch p := job.Payload.(type) {
	case model.Ping:
		_, err := fmt.Fprintln(w.out, "Pong")
		return err
	case model.SendMessageToScene:
		return w.sendMessageToScene(ctx, p)
	case model.ProcessMessage:
		return w.processMessage(ctx, p)
	case model.PersonWaiting:
		w.log.Debug("person waiting",
			zap.Stringer("person_id", p.PersonID),
			zap.Int64("duration_ms", p.DurationMS),
			zap.Int64("current_active_ms", p.CurrentActiveMS))
		return nil
	}
	return fmt.Errorf("unhandled job kind %q", job.Kind())
}
