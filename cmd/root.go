package cmd

import (
	"github.com/bnema/jellyfin-enrich/internal/application"
	"github.com/spf13/cobra"
)

// skipWireAnnotation marks commands that run without loading config or
// opening storage.
const skipWireAnnotation = "jfe/skip-wire"

type rootOptions struct {
	configPath string
	serverURL  string
	verbose    bool
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "jfe",
		Short:         "Jellyfin enrich (jfe): catalog lookups with quality and genre badges",
		Long:          "jfe resolves the signed-in Jellyfin session, looks catalog items up through a gated gateway and derives quality or genre badges through the visibility-driven pipeline, with a persistent eviction cache in between.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipWireAnnotation] == "true" {
				return nil
			}
			return app.wire(cmd, *opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return app.close(cmd.Context())
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/jfe/config.toml)")
	flags.StringVar(&opts.serverURL, "server", "", "Server URL, overrides server.url")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(
		newVersionCmd(),
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoAmICmd(app),
		newItemsCmd(app),
		newFavoriteCmd(app),
		newPlayedCmd(app),
		newAnnotateCmd(app, application.AttributeQuality),
		newAnnotateCmd(app, application.AttributeGenre),
		newCacheCmd(app),
	)

	return rootCmd
}
