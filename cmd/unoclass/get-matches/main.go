package get_matches

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"

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
	watch      bool

	paths []string
}

func NewGetMatchesCommand() *cobra.Command {
	return newCommand(&Handler{fs: afero.NewOsFs(), logOut: os.Stderr})
}

func newCommand(me *Handler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-matches [paths...]",
		Short: "list the utility classes the rules match in files or directories",
	}

	cmd.Args = cobra.MinimumNArgs(1)

	cmd.Flags().StringVar(&me.configPath, "config", "", "path to the settings file")
	cmd.Flags().StringVar(&me.rulesPath, "rules", "", "path to the rules file, overrides the rules setting")
	cmd.Flags().BoolVar(&me.debug, "debug", false, "enable debug logging")
	cmd.Flags().BoolVar(&me.watch, "watch", false, "keep running and print matches again after every change")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		me.paths = args
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

	encoder := json.NewEncoder(me.out)
	report := func(ctx context.Context, results []session.FileMatches) error {
		if err := encoder.Encode(results); err != nil {
			return errors.Errorf("failed to encode matches: %w", err)
		}
		return nil
	}

	if !me.watch {
		results, err := sess.Match(ctx, me.paths, false)
		if err != nil {
			return errors.Errorf("failed to get matches: %w", err)
		}
		return report(ctx, results)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := sess.Watch(ctx, me.paths, report); err != nil {
		return errors.Errorf("failed to watch: %w", err)
	}

	return nil
}
