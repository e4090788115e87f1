package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List your sessions on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			sessions, err := application.Session().ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}

			fmt.Fprintf(out, "%-28s  %-7s  %-15s  %-25s  %s\n", "ID", "CURRENT", "IP", "CREATED", "EXPIRES")
			fmt.Fprintf(out, "%-28s  %-7s  %-15s  %-25s  %s\n", "--", "-------", "--", "-------", "-------")
			for _, s := range sessions {
				current := ""
				if s.IsCurrent {
					current = "*"
				}
				fmt.Fprintf(out, "%-28s  %-7s  %-15s  %-25s  %s\n", s.ID, current, s.IPAddress, s.CreatedAt, s.ExpiresAt)
			}
			return nil
		},
	}

	cmd.AddCommand(newRevokeCmd())
	return cmd
}

func newRevokeCmd() *cobra.Command {
	var others bool

	cmd := &cobra.Command{
		Use:   "revoke [session-id]",
		Short: "Revoke one session, or every other session with --others",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			mgr := application.Session()

			switch {
			case others && len(args) == 0:
				n, err := mgr.RevokeOtherSessions(cmd.Context())
				if err != nil {
					return fmt.Errorf("revoke sessions: %w", err)
				}
				fmt.Fprintf(out, "Revoked %d other session(s).\n", n)
				return nil
			case !others && len(args) == 1:
				if err := mgr.RevokeSession(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("revoke session: %w", err)
				}
				fmt.Fprintf(out, "Revoked session %s.\n", args[0])
				return nil
			default:
				return errors.New("pass a session id or --others")
			}
		},
	}

	cmd.Flags().BoolVar(&others, "others", false, "Revoke every session except this one")
	return cmd
}
