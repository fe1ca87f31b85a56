package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Manage scenes and who is in them",
	}

	create := &cobra.Command{
		Use:   "create [name] [description]",
		Short: "Create a scene",
		Args:  cobra.MinimumNArgs(2),
		Run:   runSceneCreate,
	}
	describe := &cobra.Command{
		Use:   "describe [name] [description]",
		Short: "Record a new description for a scene",
		Args:  cobra.MinimumNArgs(2),
		Run:   runSceneDescribe,
	}
	join := &cobra.Command{
		Use:   "join [scene name or id] [person]",
		Short: "Move a person into a scene, leaving any other scene",
		Args:  cobra.ExactArgs(2),
		Run:   runSceneJoin,
	}
	leave := &cobra.Command{
		Use:   "leave [scene] [person]",
		Short: "Remove a person from a scene",
		Args:  cobra.ExactArgs(2),
		Run:   runSceneLeave,
	}
	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a scene (or all scenes when no name is given)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runSceneShow,
	}
	show.Flags().Bool("history", false, "Include past participations")

	cmd.AddCommand(create, describe, join, leave, show)
	RootCmd.AddCommand(cmd)
}

func runSceneCreate(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	id, err := s.CreateScene(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		exitErr("create scene", err)
	}
	printJSON(model.Scene{ID: id, Name: args[0]})
}

func runSceneDescribe(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	scene, err := findScene(ctx, s, args[0])
	if err != nil {
		exitErr("get scene", err)
	}
	id, err := s.CreateSceneSnapshot(ctx, scene.ID, strings.Join(args[1:], " "))
	if err != nil {
		exitErr("describe scene", err)
	}
	printJSON(map[string]any{"scene_id": scene.ID, "snapshot_id": id})
}

func runSceneJoin(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	scene, err := findScene(ctx, s, args[0])
	if err != nil {
		exitErr("get scene", err)
	}
	id, err := s.AddPersonToScene(ctx, scene.ID, args[1])
	if err != nil {
		exitErr("join scene", err)
	}
	printJSON(map[string]any{"participation_id": id})
}

func runSceneLeave(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	scene, err := findScene(ctx, s, args[0])
	if err != nil {
		exitErr("get scene", err)
	}
	if err := s.RemovePersonFromScene(ctx, scene.ID, args[1]); err != nil {
		exitErr("leave scene", err)
	}
	printJSON(map[string]any{"left": args[1], "scene": args[0]})
}

type sceneView struct {
	model.Scene
	Description  string                     `json:"description"`
	Participants []model.SceneParticipation `json:"participants"`
	History      []model.SceneParticipation `json:"history,omitempty"`
}

func runSceneShow(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetBool("history")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		scenes, err := s.ListScenes(ctx)
		if err != nil {
			exitErr("list scenes", err)
		}
		if len(scenes) == 0 {
			fmt.Println("[]")
			return
		}
		printJSON(scenes)
		return
	}

	v, err := describeScene(ctx, s, args[0], history)
	if err != nil {
		exitErr("show scene", err)
	}
	printJSON(v)
}

func describeScene(ctx context.Context, s *store.SQLiteStore, name string, history bool) (*sceneView, error) {
	scene, err := findScene(ctx, s, name)
	if err != nil {
		return nil, err
	}
	snap, err := s.GetLatestSnapshot(ctx, scene.ID)
	if err != nil {
		return nil, err
	}
	parts, err := s.GetSceneCurrentParticipants(ctx, scene.ID)
	if err != nil {
		return nil, err
	}
	v := &sceneView{Scene: *scene, Description: snap.Description, Participants: parts}
	if history {
		if v.History, err = s.GetSceneParticipationHistory(ctx, scene.ID); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// findScene resolves a scene by id, or by name when ref is not an id.
// Scene names may repeat, so a shared name fails with store.ErrAmbiguous.
func findScene(ctx context.Context, s *store.SQLiteStore, ref string) (*model.Scene, error) {
	if id, err := model.Parse[model.SceneID](ref); err == nil {
		return s.GetScene(ctx, id)
	}
	return s.GetSceneByName(ctx, ref)
}
