package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/jellyfin-enrich/internal/application"
	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/spf13/cobra"
)

func newItemsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "items <item-id>...",
		Short: "Look items up in one bulk request",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireServer(); err != nil {
				return err
			}

			result, err := app.service.LookupItems(cmd.Context(), args)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			out := cmd.OutOrStdout()
			for _, item := range result.Found {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", item.ID, item.Type, item.Name)
			}
			for _, id := range result.Missing {
				_, _ = fmt.Fprintf(out, "%s\tmissing\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

type toggleFunc func(*application.Service, *cobra.Command, application.ToggleCommand) (domain.UserData, error)

func newFavoriteCmd(app *app) *cobra.Command {
	return newToggleCmd(app, "favorite", "Mark an item as favorite",
		func(svc *application.Service, cmd *cobra.Command, toggle application.ToggleCommand) (domain.UserData, error) {
			return svc.SetFavorite(cmd.Context(), toggle)
		})
}

func newPlayedCmd(app *app) *cobra.Command {
	return newToggleCmd(app, "played", "Mark an item as played",
		func(svc *application.Service, cmd *cobra.Command, toggle application.ToggleCommand) (domain.UserData, error) {
			return svc.SetPlayed(cmd.Context(), toggle)
		})
}

func newToggleCmd(app *app, name, short string, toggle toggleFunc) *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   name + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireServer(); err != nil {
				return err
			}

			data, err := toggle(app.service, cmd, application.ToggleCommand{ItemID: args[0], On: !off})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\tfavorite=%t\tplayed=%t\n", args[0], data.IsFavorite, data.Played)
			return nil
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "Clear the flag instead of setting it")

	return cmd
}
