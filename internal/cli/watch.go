package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/feed"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print commits made by other operators as they happen",
	Long: `Follows the shared document and prints every commit made from another
process: its revision, who made it and which collections changed. With the
sqlite driver the database file is watched; other drivers are polled.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Poll interval for non-file stores")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := mustApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	w := feed.ForEngine(a.engine)
	onChange := func(c feed.Change) {
		who := c.User
		if who == "" {
			who = "unknown"
		}
		fmt.Fprintf(out, "%s  rev %s  %s  %s\n",
			dimStyle.Render(c.At.Local().Format("15:04:05")),
			titleStyle.Render(fmt.Sprint(c.Revision)),
			cyanStyle.Render(who),
			strings.Join(c.Collections, ", "))
	}
	onError := func(err error) {
		a.log.WithError(err).Warn("poll failed")
	}

	fmt.Fprintln(out, dimStyle.Render("Watching for changes, Ctrl-C to stop."))
	if a.cfg.Store.Driver == "sqlite" {
		dir := filepath.Dir(a.cfg.Store.Path)
		if !filepath.IsAbs(a.cfg.Store.Path) {
			dir = filepath.Dir(workspacePath(a.cfg.Store.Path))
		}
		err = feed.WatchDir(ctx, w, dir, 150*time.Millisecond, onChange, onError)
	} else {
		if err := w.Prime(ctx); err != nil {
			return err
		}
		err = w.Run(ctx, watchInterval, onChange, onError)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
