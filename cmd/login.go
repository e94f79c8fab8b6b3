package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	authadapter "github.com/bnema/jellyfin-enrich/internal/adapters/auth"
	"github.com/bnema/jellyfin-enrich/internal/application"
	"github.com/bnema/jellyfin-enrich/internal/identity"
	"github.com/spf13/cobra"
)

const passwordEnv = "JFE_PASSWORD"

func newLoginCmd(app *app) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a username and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			serverURL, err := app.requireServer()
			if err != nil {
				return err
			}

			if passwordStdin {
				password, err = readPassword(cmd)
				if err != nil {
					return err
				}
			}
			if password == "" {
				password = os.Getenv(passwordEnv)
			}

			return runLogin(cmd, app, serverURL, username, password)
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set "+passwordEnv+")")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runLogin(cmd *cobra.Command, app *app, serverURL, username, password string) error {
	ctx := cmd.Context()

	deviceID, err := app.storage.Get(ctx, identity.KeyDeviceID)
	if err != nil || strings.TrimSpace(deviceID) == "" {
		deviceID = app.newDeviceID()
	}

	flow := authadapter.PasswordFlowAdapter{
		BaseURL:        serverURL,
		HTTPClient:     app.httpClient,
		RequestTimeout: app.settings.Gateway.Timeout,
		ClientName:     app.settings.ClientName,
		ClientVersion:  app.settings.ClientVersion,
		DeviceID:       deviceID,
	}

	info, err := flow.ServerInfo(ctx)
	if err != nil {
		return fmt.Errorf("reach server: %w", err)
	}

	id, err := flow.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, authadapter.ErrInvalidCredentials) {
			return err
		}
		return fmt.Errorf("authenticate: %w", err)
	}
	if id.ServerID == "" {
		id.ServerID = info.ID
	}

	resolved, err := app.service.Login(ctx, application.LoginCommand{Identity: id, ServerURL: serverURL})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s on %s (%s %s)\n",
		resolved.UserID, serverURL, valueOrUnknown(info.ServerName), valueOrUnknown(info.Version))
	return nil
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and wipe stored credentials and caches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.service.Logout(cmd.Context()); err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func valueOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
