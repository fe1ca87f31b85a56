package cli

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/personae/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "send [content]",
		Short: "Send a message as " + model.RealWorldUserName,
		Long: `Send a message from the real-world user to a person or a scene.
Content can be a positional arg or piped via stdin. The message is delivered
by the worker, which queues a reaction for every recipient.`,
		Run: runSend,
	}

	cmd.Flags().String("to", "", "Recipient person name")
	cmd.Flags().String("scene", "", "Recipient scene name")
	cmd.Flags().Uint64("seed", 0, "Delivery order seed for scene messages (default: random)")
	cmd.MarkFlagsOneRequired("to", "scene")
	cmd.MarkFlagsMutuallyExclusive("to", "scene")

	RootCmd.AddCommand(cmd)
}

func runSend(cmd *cobra.Command, args []string) {
	to, _ := cmd.Flags().GetString("to")
	sceneName, _ := cmd.Flags().GetString("scene")
	seed, _ := cmd.Flags().GetUint64("seed")
	if !cmd.Flags().Changed("seed") {
		seed = rand.Uint64()
	}

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("send", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if sceneName != "" {
		scene, err := findScene(ctx, s, sceneName)
		if err != nil {
			exitErr("get scene", err)
		}
		jobID, err := s.UnshiftJob(ctx, model.SendMessageToScene{
			Sender:     model.RealWorldUser(),
			SceneID:    scene.ID,
			Content:    content,
			RandomSeed: seed,
		})
		if err != nil {
			exitErr("enqueue scene message", err)
		}
		printJSON(map[string]any{"job_id": jobID, "scene_id": scene.ID, "random_seed": seed})
		return
	}

	person, err := s.GetPersonByName(ctx, to)
	if err != nil {
		exitErr("get person", err)
	}
	msgID, err := s.SendMessage(ctx, model.NewMessage{
		Sender:    model.RealWorldUser(),
		Recipient: model.ToPerson(person.ID),
		Content:   content,
	})
	if err != nil {
		exitErr("send message", err)
	}
	jobID, err := s.UnshiftJob(ctx, model.ProcessMessage{MessageID: msgID})
	if err != nil {
		exitErr("enqueue message", err)
	}
	printJSON(map[string]any{"job_id": jobID, "message_id": msgID})
}
