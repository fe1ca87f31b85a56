package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/personae/internal/memory"
	"github.com/rcliao/personae/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Add and search person memories",
	}

	add := &cobra.Command{
		Use:   "add [person] [content]",
		Short: "Embed and store a memory for a person",
		Args:  cobra.MinimumNArgs(2),
		Run:   runMemoryAdd,
	}

	imp := &cobra.Command{
		Use:   "import [person] [file]",
		Short: "Store a markdown backstory as memories, one per passage",
		Args:  cobra.ExactArgs(2),
		Run:   runMemoryImport,
	}

	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by similarity",
		Args:  cobra.MinimumNArgs(1),
		Run:   runMemorySearch,
	}
	search.Flags().StringP("person", "p", "", "Only this person's memories")
	search.Flags().IntP("limit", "l", 8, "Max results")

	cmd.AddCommand(add, imp, search)
	RootCmd.AddCommand(cmd)
}

func runMemoryAdd(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := newModel(s)
	if err != nil {
		exitErr("llm", err)
	}

	id, err := memory.New(s, m, logger).CreateMemory(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		exitErr("add memory", err)
	}
	printJSON(map[string]any{"memory_id": id})
}

func runMemoryImport(cmd *cobra.Command, args []string) {
	text, err := os.ReadFile(args[1])
	if err != nil {
		exitErr("read backstory", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := newModel(s)
	if err != nil {
		exitErr("llm", err)
	}

	ids, err := memory.New(s, m, logger).ImportBackstory(cmd.Context(), args[0], string(text))
	if err != nil {
		exitErr("import backstory", err)
	}
	printJSON(map[string]any{"memory_ids": ids})
}

func runMemorySearch(cmd *cobra.Command, args []string) {
	personName, _ := cmd.Flags().GetString("person")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	m, err := newModel(s)
	if err != nil {
		exitErr("llm", err)
	}

	ctx := cmd.Context()
	var person *model.PersonID
	if personName != "" {
		p, err := s.GetPersonByName(ctx, personName)
		if err != nil {
			exitErr("get person", err)
		}
		person = &p.ID
	}

	results, err := memory.New(s, m, logger).SearchMemories(ctx, query, limit, person)
	if err != nil {
		exitErr("search", err)
	}

	if formatFlag == "text" {
		for _, r := range results {
			fmt.Printf("%.4f  %s\n", r.Distance, r.Content)
		}
		return
	}
	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
