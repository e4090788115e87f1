package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/pulsarconsole/internal/querycache"
	"github.com/aussiebroadwan/pulsarconsole/internal/realtime"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the realtime change feed",
		Long:  "Connects to the backend's realtime endpoint and prints every event with the cached queries it invalidates.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if !application.Session().State().IsAuthenticated() {
				return fmt.Errorf("not logged in")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application.Watch(
				func(ev realtime.Event, keys []querycache.Key) {
					fmt.Fprintf(out, "%s %s\n", ev.Type, scope(ev.Data))
					for _, k := range keys {
						fmt.Fprintf(out, "  invalidate %s\n", k)
					}
				},
				func(s realtime.State) {
					fmt.Fprintf(out, "[%s]\n", s)
				},
			)
			defer application.Unwatch()

			<-ctx.Done()
			return nil
		},
	}
}

func scope(d realtime.EventData) string {
	s := d.Tenant
	if d.Namespace != "" {
		s += "/" + d.Namespace
	}
	if d.Topic != "" {
		s += "/" + d.Topic
	}
	if s == "" {
		s = "*"
	}
	if d.Action != "" {
		s += " (" + d.Action + ")"
	}
	return s
}
