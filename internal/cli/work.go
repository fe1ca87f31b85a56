package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/personae/internal/store"
	"github.com/rcliao/personae/internal/worker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run the job worker",
		Long:  "Drain the job queue, sleeping between polls, until interrupted. With --drain, exit once the queue is empty.",
		Run:   runWork,
	}

	cmd.Flags().Duration("poll", 0, "Poll interval (default: worker.poll_interval from config)")
	cmd.Flags().Bool("drain", false, "Exit when the queue is empty")
	cmd.Flags().Duration("report", time.Minute, "How often to log queue depth (0 disables)")

	RootCmd.AddCommand(cmd)
}

func runWork(cmd *cobra.Command, args []string) {
	poll, _ := cmd.Flags().GetDuration("poll")
	drain, _ := cmd.Flags().GetBool("drain")
	report, _ := cmd.Flags().GetDuration("report")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	w, err := newWorker(s, worker.Options{PollInterval: poll, Out: os.Stdout})
	if err != nil {
		exitErr("worker", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if drain {
		if err := drainQueue(ctx, w); err != nil {
			exitErr("work", err)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	if report > 0 {
		g.Go(func() error {
			return reportQueue(gctx, s, report)
		})
	}
	err = g.Wait()
	logger.Info("shutting down", zap.Error(context.Cause(ctx)))
	if err != nil {
		exitErr("work", err)
	}
}

// reportQueue logs the job counts every interval until ctx is done.
func reportQueue(ctx context.Context, s *store.SQLiteStore, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		st, err := s.Stats(ctx, cfg.Database.Path)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("queue report: %w", err)
		}
		logger.Info("queue",
			zap.Int("pending", st.Jobs.Pending),
			zap.Int("running", st.Jobs.Running),
			zap.Int("finished", st.Jobs.Finished),
			zap.Int("unread_messages", st.Unread))
	}
}

// drainQueue runs jobs until the queue is empty. Handler failures are
// already logged by the worker and do not stop the drain.
func drainQueue(ctx context.Context, w *worker.Worker) error {
	for ctx.Err() == nil {
		job, err := w.RunOnce(ctx)
		if job == nil {
			return err
		}
	}
	return nil
}
