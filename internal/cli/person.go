package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "person",
		Short: "Manage AI persons",
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a person with an identity and a state of mind",
		Args:  cobra.ExactArgs(1),
		Run:   runPersonCreate,
	}
	create.Flags().String("identity", "", "Who the person is (required)")
	create.Flags().String("state", "", "Initial state of mind (required)")
	create.MarkFlagRequired("identity")
	create.MarkFlagRequired("state")

	update := &cobra.Command{
		Use:   "update [name]",
		Short: "Record a new identity or state of mind",
		Args:  cobra.ExactArgs(1),
		Run:   runPersonUpdate,
	}
	update.Flags().String("identity", "", "New identity")
	update.Flags().String("state", "", "New state of mind")

	show := &cobra.Command{
		Use:   "show [name]",
		Short: "Show a person (or all persons when no name is given)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runPersonShow,
	}

	cmd.AddCommand(create, update, show)
	RootCmd.AddCommand(cmd)
}

func runPersonCreate(cmd *cobra.Command, args []string) {
	identity, _ := cmd.Flags().GetString("identity")
	state, _ := cmd.Flags().GetString("state")
	name := args[0]

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	id, err := s.CreatePerson(ctx, name)
	if err != nil {
		exitErr("create person", err)
	}
	if _, err := s.CreateIdentity(ctx, name, identity); err != nil {
		exitErr("create identity", err)
	}
	if _, err := s.CreateStateOfMind(ctx, name, state); err != nil {
		exitErr("create state of mind", err)
	}

	printJSON(model.Person{ID: id, Name: name})
}

func runPersonUpdate(cmd *cobra.Command, args []string) {
	identity, _ := cmd.Flags().GetString("identity")
	state, _ := cmd.Flags().GetString("state")
	name := args[0]

	if identity == "" && state == "" {
		exitErr("update person", fmt.Errorf("nothing to update: pass --identity or --state"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	if identity != "" {
		if _, err := s.CreateIdentity(ctx, name, identity); err != nil {
			exitErr("update identity", err)
		}
	}
	if state != "" {
		if _, err := s.CreateStateOfMind(ctx, name, state); err != nil {
			exitErr("update state of mind", err)
		}
	}

	p, err := describePerson(ctx, s, name)
	if err != nil {
		exitErr("show person", err)
	}
	printJSON(p)
}

type personView struct {
	model.Person
	Identity     string                    `json:"identity,omitempty"`
	StateOfMind  string                    `json:"state_of_mind,omitempty"`
	CurrentScene *model.SceneParticipation `json:"current_scene,omitempty"`
}

func runPersonShow(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if len(args) == 0 {
		persons, err := s.ListPersons(cmd.Context())
		if err != nil {
			exitErr("list persons", err)
		}
		if len(persons) == 0 {
			fmt.Println("[]")
			return
		}
		printJSON(persons)
		return
	}

	p, err := describePerson(cmd.Context(), s, args[0])
	if err != nil {
		exitErr("show person", err)
	}
	printJSON(p)
}

func describePerson(ctx context.Context, s *store.SQLiteStore, name string) (*personView, error) {
	p, err := s.GetPersonByName(ctx, name)
	if err != nil {
		return nil, err
	}
	v := &personView{Person: *p}

	identity, err := s.GetLatestIdentity(ctx, p.ID)
	switch {
	case err == nil:
		v.Identity = identity.Identity
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	som, err := s.GetLatestStateOfMind(ctx, p.ID)
	switch {
	case err == nil:
		v.StateOfMind = som.Content
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	v.CurrentScene, err = s.GetPersonsCurrentScene(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return v, nil
}
