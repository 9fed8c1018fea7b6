package get_completions

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/debug"
	"github.com/walteh/unoclass/pkg/session"
)

type Handler struct {
	fs     afero.Fs
	out    io.Writer
	logOut io.Writer

	configPath string
	rulesPath  string
	debug      bool

	filePath string
	offset   int
}

func NewGetCompletionsCommand() *cobra.Command {
	return newCommand(&Handler{fs: afero.NewOsFs(), logOut: os.Stderr})
}

func newCommand(me *Handler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-completions [file-path] [offset]",
		Short: "get utility class completions at a byte offset in a file",
	}

	cmd.Args = cobra.ExactArgs(2)

	cmd.Flags().StringVar(&me.configPath, "config", "", "path to the settings file")
	cmd.Flags().StringVar(&me.rulesPath, "rules", "", "path to the rules file, overrides the rules setting")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.filePath = args[0]
		var err error
		me.offset, err = strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("invalid offset: %w", err)
		}
		me.out = cmd.OutOrStdout()
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	ctx = debug.WithLogger(ctx, me.logOut, me.debug, !color.NoColor)

	sess, err := session.Open(ctx, me.fs, session.Options{ConfigPath: me.configPath, RulesPath: me.rulesPath})
	if err != nil {
		return errors.Errorf("failed to open session: %w", err)
	}
	defer sess.Close(ctx)

	list, err := sess.Complete(ctx, me.filePath, me.offset)
	if err != nil {
		return errors.Errorf("failed to get completions: %w", err)
	}

	encoder := json.NewEncoder(me.out)
	if err := encoder.Encode(list); err != nil {
		return errors.Errorf("failed to encode completions: %w", err)
	}

	return nil
}
