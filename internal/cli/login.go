package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

const defaultRedirectURI = "http://localhost:5173/auth/callback"

func newLoginCmd() *cobra.Command {
	var redirectURI string

	cmd := &cobra.Command{
		Use:   "login [provider]",
		Short: "Start a login with an identity provider",
		Long: "Asks the backend for the provider's authorization URL and remembers the login state.\n" +
			"Open the URL, then pass the URL you are redirected to into 'consolectl callback'.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			mgr := application.Session()
			st := mgr.State()

			if !st.AuthRequired {
				fmt.Fprintln(out, "Authentication is disabled on this backend.")
				return nil
			}

			var provider string
			switch {
			case len(args) == 1:
				provider = args[0]
			case len(st.Providers) == 1:
				provider = st.Providers[0].ID
			case len(st.Providers) == 0:
				return errors.New("backend offers no login providers")
			default:
				fmt.Fprintln(out, "Choose a provider:")
				for _, p := range st.Providers {
					fmt.Fprintf(out, "  %-12s  %s\n", p.ID, p.Name)
				}
				return errors.New("provider argument required")
			}

			authURL, err := mgr.Login(cmd.Context(), provider, redirectURI)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Open this URL to log in:")
			fmt.Fprintln(out, authURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&redirectURI, "redirect-uri", defaultRedirectURI, "Callback URL registered with the provider")
	return cmd
}

func newCallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "callback <redirect-url> | <code> <state>",
		Short: "Complete a login with the provider's redirect",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, state, err := callbackParams(args)
			if err != nil {
				return err
			}

			user, err := application.Session().HandleCallback(cmd.Context(), code, state)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.Email)
			return nil
		},
	}
}

// callbackParams accepts either the full redirect URL or the bare values.
func callbackParams(args []string) (code, state string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}

	u, err := url.Parse(args[0])
	if err != nil || !strings.Contains(args[0], "?") {
		return "", "", fmt.Errorf("expected a redirect URL with code and state, got %q", args[0])
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", "", fmt.Errorf("provider returned %s: %s", e, q.Get("error_description"))
	}

	code, state = q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		return "", "", errors.New("redirect URL is missing code or state")
	}
	return code, state, nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := application.Session()
			if !mgr.Credentials().IsAuthenticated(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}

			mgr.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			st := application.Session().State()

			if !st.AuthRequired {
				fmt.Fprintln(out, "Authentication is disabled on this backend.")
				return nil
			}
			if !st.IsAuthenticated() {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}

			u := st.User
			roles := make([]string, 0, len(u.Roles))
			for _, r := range u.Roles {
				roles = append(roles, r.Name)
			}

			fmt.Fprintf(out, "User:         %s\n", u.Email)
			if u.DisplayName != "" {
				fmt.Fprintf(out, "Name:         %s\n", u.DisplayName)
			}
			fmt.Fprintf(out, "Global admin: %t\n", u.IsGlobalAdmin)
			fmt.Fprintf(out, "Roles:        %s\n", strings.Join(roles, ", "))
			if !st.HasAccess() {
				fmt.Fprintln(out, "This account has no roles; ask an administrator for access.")
			}
			return nil
		},
	}
}
