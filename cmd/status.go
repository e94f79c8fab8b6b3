package cmd

import (
	"encoding/json"
	"fmt"

	statusadapter "github.com/bnema/jellyfin-enrich/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

func newWhoAmICmd(app *app) *cobra.Command {
	var (
		asJSON    bool
		showToken bool
	)

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the resolved session and cache usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			who, err := app.service.WhoAmI(cmd.Context())
			if err != nil {
				return err
			}
			if who.ServerURL == "" {
				who.ServerURL = app.serverURL
			}
			if asJSON && !showToken {
				who.Identity.AccessToken = redactToken(who.Identity.AccessToken)
			}

			st := statusadapter.Status{WhoAmI: who, Caches: app.service.CacheStats()}
			return writeStatusOutput(cmd, app, st, statusadapter.RenderOptions{ShowToken: showToken}, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showToken, "show-token", false, "Print the access token in clear")

	return cmd
}

func writeStatusOutput(cmd *cobra.Command, app *app, st statusadapter.Status, opts statusadapter.RenderOptions, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	rendered, err := app.statusRenderer(st, opts)
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// redactToken keeps the token out of JSON output unless asked for.
func redactToken(token string) string {
	if token == "" {
		return ""
	}
	return "redacted"
}
