package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/jellyfin-enrich/internal/adapters/viewport"
	"github.com/bnema/jellyfin-enrich/internal/application"
	"github.com/bnema/jellyfin-enrich/internal/domain"
	"github.com/bnema/jellyfin-enrich/internal/pipeline"
	"github.com/spf13/cobra"
)

var annotateCommands = map[application.Attribute]struct {
	use   string
	short string
}{
	application.AttributeQuality: {use: "quality", short: "Derive quality badges for items as they scroll into view"},
	application.AttributeGenre:   {use: "genres", short: "Derive genre labels for items as they scroll into view"},
}

func newAnnotateCmd(app *app, attr application.Attribute) *cobra.Command {
	var (
		asJSON    bool
		prime     bool
		rowHeight int
		step      int
		quiet     bool
	)

	meta := annotateCommands[attr]
	cmd := &cobra.Command{
		Use:   meta.use + " <item-id>...",
		Short: meta.short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.requireServer(); err != nil {
				return err
			}

			req := application.AnnotateRequest{
				ItemIDs:    args,
				Attribute:  attr,
				Viewport:   viewport.New(app.settings.Viewport.Height, app.settings.Viewport.Margin),
				RowHeight:  rowHeight,
				ScrollStep: step,
			}
			if prime {
				lookup, err := app.service.LookupItems(cmd.Context(), args)
				if err != nil {
					return err
				}
				req.Prime = lookup.Found
			}

			annotations, err := runAnnotate(cmd, app, req, quiet)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(annotations)
			}

			rendered, err := app.annotationRenderer(annotations, attr)
			if err != nil {
				return fmt.Errorf("render annotations: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&prime, "prime", false, "Fetch all items in one bulk request first")
	cmd.Flags().IntVar(&rowHeight, "row-height", 0, "Simulated row height in pixels")
	cmd.Flags().IntVar(&step, "scroll-step", 0, "Simulated scroll step in pixels")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress spinner")

	return cmd
}

func runAnnotate(cmd *cobra.Command, app *app, req application.AnnotateRequest, quiet bool) ([]application.Annotation, error) {
	var (
		annotations []application.Annotation
		stats       pipeline.Stats
	)
	work := func(ctx context.Context, progress func(pipeline.Stats)) error {
		req.Progress = progress
		var err error
		annotations, stats, err = app.service.Annotate(ctx, req)
		return err
	}

	var err error
	if quiet {
		err = work(cmd.Context(), nil)
	} else {
		label := fmt.Sprintf("Resolving %s...", req.Attribute)
		err = runAnnotateSpinner(cmd.Context(), cmd.ErrOrStderr(), label, len(req.ItemIDs), work)
	}
	if err != nil {
		if errors.Is(err, domain.ErrAuthNotReady) {
			return nil, fmt.Errorf("%w (run `jfe login` first)", err)
		}
		return nil, err
	}

	app.logger.Info("annotate finished",
		"attribute", string(req.Attribute),
		"items", len(req.ItemIDs),
		"rendered", stats.Rendered,
		"peak_in_flight", stats.PeakInFlight,
	)
	return annotations, nil
}
