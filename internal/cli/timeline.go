package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/personae/internal/events"
	"github.com/rcliao/personae/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show what a person or scene has seen",
		Long: `Show the chronological events visible to a person (their direct messages) and,
with --scene, what happened in that scene since the person last joined it.`,
		Run: runTimeline,
	}

	cmd.Flags().StringP("person", "p", "", "Person name")
	cmd.Flags().StringP("scene", "s", "", "Scene name")
	cmd.MarkFlagsOneRequired("person", "scene")

	RootCmd.AddCommand(cmd)
}

func runTimeline(cmd *cobra.Command, args []string) {
	personName, _ := cmd.Flags().GetString("person")
	sceneName, _ := cmd.Flags().GetString("scene")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	var (
		person *model.PersonID
		scene  *model.SceneID
	)
	if personName != "" {
		p, err := s.GetPersonByName(ctx, personName)
		if err != nil {
			exitErr("get person", err)
		}
		person = &p.ID
	}
	if sceneName != "" {
		sc, err := findScene(ctx, s, sceneName)
		if err != nil {
			exitErr("get scene", err)
		}
		scene = &sc.ID
	}

	evs, err := events.New(s).GetEvents(ctx, person, scene)
	if err != nil {
		exitErr("timeline", err)
	}

	if formatFlag == "text" {
		for _, e := range evs {
			fmt.Println(e.String())
		}
		return
	}
	if len(evs) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(evs)
}
