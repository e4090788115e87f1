package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/pulsarconsole/internal/querycache"
	"github.com/aussiebroadwan/pulsarconsole/internal/realtime"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
)

// listing is one cached catalog query.
type listing struct {
	key  querycache.Key
	path string
}

func newGetCmd() *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "get",
		Short: "List catalog resources",
	}
	cmd.PersistentFlags().BoolVarP(&follow, "follow", "f", false, "Keep running and print the list again whenever it changes")

	run := func(l func(args []string) listing) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, l(args), follow)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "tenants",
			Short: "List tenants",
			Args:  cobra.NoArgs,
			RunE: run(func([]string) listing {
				return listing{querycache.TenantList(), "/tenants"}
			}),
		},
		&cobra.Command{
			Use:   "namespaces <tenant>",
			Short: "List the namespaces of a tenant",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(args []string) listing {
				return listing{
					querycache.Namespaces(args[0]),
					"/tenants/" + url.PathEscape(args[0]) + "/namespaces",
				}
			}),
		},
		&cobra.Command{
			Use:   "topics <tenant> <namespace>",
			Short: "List the topics of a namespace",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(args []string) listing {
				return listing{
					querycache.Topics(args[0], args[1]),
					"/tenants/" + url.PathEscape(args[0]) + "/namespaces/" + url.PathEscape(args[1]) + "/topics",
				}
			}),
		},
		&cobra.Command{
			Use:   "brokers",
			Short: "List brokers",
			Args:  cobra.NoArgs,
			RunE: run(func([]string) listing {
				return listing{querycache.Brokers(), "/brokers"}
			}),
		},
	)

	return cmd
}

func (l listing) fetch(ctx context.Context) (consoleapi.NameList, error) {
	client := application.Session().Client()
	return querycache.Fetch(ctx, application.Cache(), l.key, func(ctx context.Context) (consoleapi.NameList, error) {
		var out consoleapi.NameList
		if err := client.Get(ctx, l.path, &out); err != nil {
			return consoleapi.NameList{}, err
		}
		return out, nil
	})
}

func printNames(out io.Writer, list consoleapi.NameList) {
	if len(list.Items) == 0 {
		fmt.Fprintln(out, "No resources found.")
		return
	}
	for _, name := range list.Items {
		fmt.Fprintln(out, name)
	}
}

func runGet(cmd *cobra.Command, l listing, follow bool) error {
	out := cmd.OutOrStdout()

	list, err := l.fetch(cmd.Context())
	if err != nil {
		return fmt.Errorf("get %s: %w", l.key, err)
	}
	printNames(out, list)

	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changed := make(chan struct{}, 1)
	application.Watch(func(realtime.Event, []querycache.Key) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, nil)
	defer application.Unwatch()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}

		if _, _, stale := application.Cache().Get(l.key); !stale {
			continue
		}

		list, err := l.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			application.Logger().Warn("refetch failed", "key", l.key.String(), "err", err)
			continue
		}
		fmt.Fprintln(out, "---")
		printNames(out, list)
	}
}
