package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	get_completions "github.com/walteh/unoclass/cmd/unoclass/get-completions"
	get_matches "github.com/walteh/unoclass/cmd/unoclass/get-matches"
)

func main() {
	if err := run(); err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:          "unoclass",
		Short:        "utility class completion and matching for source files",
		SilenceUsage: true,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		rootCmd.Version = "unknown"
	} else {
		rootCmd.Version = info.Main.Version
	}

	cmdVersion := &cobra.Command{
		Use: "raw-version",
		Run: func(cmdz *cobra.Command, args []string) {
			cmdz.Println(rootCmd.Version)
		},
		Hidden: true,
	}

	rootCmd.AddCommand(cmdVersion)

	rootCmd.AddCommand(get_completions.NewGetCompletionsCommand())
	rootCmd.AddCommand(get_matches.NewGetMatchesCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		return errors.Errorf("failed to execute command: %w", err)
	}

	return nil
}
