package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/personae/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the config file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long:  "Write the default settings to --config (default ~/.personae/config.yaml). Secrets such as the API key are left out; set them in the environment or a .env file.",
		Run:   runConfigInit,
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Run:   runConfigShow,
	}

	cmd.AddCommand(initCmd, show)
	RootCmd.AddCommand(cmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")
	path := getConfigPath()

	if _, err := os.Stat(path); err == nil && !force {
		exitErr("config init", fmt.Errorf("%s already exists (use --force to overwrite)", path))
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		exitErr("config init", err)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		exitErr("config init", err)
	}
	printJSON(map[string]any{"config": path})
}

func runConfigShow(cmd *cobra.Command, args []string) {
	shown := *cfg
	if shown.LLM.APIKey != "" {
		shown.LLM.APIKey = "<set>"
	}
	b, err := yaml.Marshal(&shown)
	if err != nil {
		exitErr("config show", err)
	}
	fmt.Print(string(b))
}
