package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/worker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Enqueue a Ping job",
		Long:  "Enqueue a Ping job. A worker answers it by printing Pong. With --run, process it immediately.",
		Run:   runPing,
	}

	cmd.Flags().Bool("run", false, "Process the job now instead of leaving it for a worker")

	RootCmd.AddCommand(cmd)
}

func runPing(cmd *cobra.Command, args []string) {
	run, _ := cmd.Flags().GetBool("run")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := s.UnshiftJob(cmd.Context(), model.Ping{})
	if err != nil {
		exitErr("enqueue ping", err)
	}
	if !run {
		printJSON(map[string]any{"job_id": id})
		return
	}

	// Ping needs no LLM, so the worker is built without one.
	w := worker.New(s, nil, nil, worker.Options{Out: os.Stdout}, logger)
	if _, err := w.RunOnce(cmd.Context()); err != nil {
		exitErr("ping", err)
	}
}
