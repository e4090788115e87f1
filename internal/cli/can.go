package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
)

var resourceLevels = []string{
	consoleapi.LevelCluster,
	consoleapi.LevelTenant,
	consoleapi.LevelNamespace,
	consoleapi.LevelTopic,
}

func newCanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can <action> <level> [path]",
		Short: "Check whether you may perform an action on a resource",
		Long: "Asks the backend's RBAC check. Any error counts as denied.\n" +
			"Levels: cluster, tenant, namespace, topic. Example: consolectl can produce topic public/default/orders",
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, level := args[0], args[1]
			if !slices.Contains(resourceLevels, level) {
				return fmt.Errorf("unknown resource level %q", level)
			}

			var path string
			if len(args) == 3 {
				path = args[2]
			}

			verdict := "denied"
			if application.Session().CheckPermission(cmd.Context(), action, level, path) {
				verdict = "allowed"
			}
			fmt.Fprintln(cmd.OutOrStdout(), verdict)
			return nil
		},
	}
}
