package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	goHMS "github.com/MrEthical07/goHMS"
	"github.com/MrEthical07/goHMS/internal/output"
)

func (a *app) loginCmd() *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Long: `Sign in with email and password.

The password is read from --password, --password-stdin or HMS_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pass, err := readPassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}

			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := client.Login(cmd.Context(), goHMS.Credentials{Email: email, Password: pass})
			if err != nil {
				return describeError(err)
			}
			return a.printUser(user, "Logged in as %s (%s)")
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var (
		reg           goHMS.Registration
		role          string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pass, err := readPassword(cmd.InOrStdin(), password, passwordStdin)
			if err != nil {
				return err
			}
			reg.Password = pass
			reg.Role = goHMS.Role(strings.ToUpper(role))

			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			user, err := client.Register(cmd.Context(), reg)
			if err != nil {
				return describeError(err)
			}
			return a.printUser(user, "Registered %s (%s)")
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "ADMIN or USER (default USER)")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			wasSignedIn := client.IsAuthenticated()
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			if wasSignedIn {
				a.printer.Success("Logged out")
			} else {
				a.printer.Info("Not logged in")
			}
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and session expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			snap := client.Session()

			if a.printer.JSON() {
				return a.printer.WriteJSON(struct {
					User              *goHMS.User `json:"user"`
					AccessTokenExpiry time.Time   `json:"accessTokenExpiry,omitzero"`
					RefreshExpiry     time.Time   `json:"refreshExpiry,omitzero"`
				}{snap.User, snap.AccessTokenExpiry, snap.RefreshExpiry})
			}

			t := output.NewTable(a.printer.Out(), []string{"FIELD", "VALUE"})
			t.AddRow([]string{"id", snap.User.ID})
			t.AddRow([]string{"email", snap.User.Email})
			t.AddRow([]string{"name", snap.User.Name})
			t.AddRow([]string{"role", a.printer.Bold(string(snap.User.Role))})
			t.AddRow([]string{"access token expires", formatTime(snap.AccessTokenExpiry)})
			t.AddRow([]string{"refresh expires", formatTime(snap.RefreshExpiry)})
			return t.Render()
		},
	}
}

func (a *app) canCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "can <resource> <action>",
		Short: "Check whether the signed-in user may perform an action",
		Long: `Check the role permission table for the signed-in user.

With --owner the ownership scope is applied as well: a role limited to its
own records is only allowed when the owner is the current user.`,
		Example: `  hms can leases approve
  hms can properties update --owner 5d0c...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			resource, action := args[0], args[1]

			allowed := client.HasPermission(resource, action)
			if cmd.Flags().Changed("owner") {
				allowed = client.CanAccess(resource, action, owner)
			}
			scope, _ := client.PermissionScope(resource)

			if a.printer.JSON() {
				return a.printer.WriteJSON(map[string]any{
					"resource": resource,
					"action":   action,
					"allowed":  allowed,
					"scope":    scope,
				})
			}
			if allowed {
				a.printer.Success("%s may %s %s (scope %s)", client.CurrentUser().Role, action, resource, scope)
			} else {
				a.printer.Warning("%s may not %s %s", client.CurrentUser().Role, action, resource)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id of the record")
	return cmd
}

func (a *app) printUser(user *goHMS.User, format string) error {
	if a.printer.JSON() {
		return a.printer.WriteJSON(user)
	}
	a.printer.Success(format, user.Email, user.Role)
	return nil
}

func readPassword(in io.Reader, flag string, fromStdin bool) (string, error) {
	switch {
	case fromStdin:
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	case flag != "":
		return flag, nil
	}
	if env := os.Getenv("HMS_PASSWORD"); env != "" {
		return env, nil
	}
	return "", errors.New("password required: use --password, --password-stdin or HMS_PASSWORD")
}

// describeError appends server-side field errors, which APIError.Error omits.
func describeError(err error) error {
	var apiErr *goHMS.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return err
	}
	keys := slices.Sorted(maps.Keys(apiErr.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+apiErr.Fields[k])
	}
	return fmt.Errorf("%w (%s)", err, strings.Join(parts, "; "))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
