package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dyluth/blueprints/internal/canvas"
	"github.com/dyluth/blueprints/internal/editor"
	"github.com/dyluth/blueprints/internal/printer"
	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/internal/store/httpstore"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/spf13/cobra"
)

var (
	drawNew        bool
	drawOverlay    bool
	drawSave       bool
	drawScript     string
	drawPNG        string
	drawOverlayPNG string
)

var drawCmd = &cobra.Command{
	Use:   "draw AUTHOR/NAME",
	Short: "Edit a blueprint collaboratively from a pointer script",
	Long: `Open a blueprint for editing, feed it pointer input and render the result.

Input is read from --script (or stdin) one command per line:
  X Y [KIND]      pointer event in canvas pixels (pointerdown, touchstart,
                  pointermove, pointerup; default pointerdown)
  undo | discard | save
  wait DURATION   let collaborators' points arrive

Points from other clients editing the same blueprint are merged as they
arrive. With --overlay the polygons emitted by the relay are followed too.

Examples:
  # Start a new blueprint and save it on exit
  printf '10 10\n490 10\n490 490\n' | blueprints draw ana/house --new --save

  # Add to an existing blueprint and render it
  blueprints draw ana/house --script moves.txt --png house.png`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDraw,
}

func init() {
	drawCmd.Flags().BoolVar(&drawNew, "new", false, "The blueprint has never been saved; saving creates it")
	drawCmd.Flags().BoolVar(&drawOverlay, "overlay", false, "Follow the blueprint's polygon topic")
	drawCmd.Flags().BoolVar(&drawSave, "save", false, "Save unsaved points when the script ends")
	drawCmd.Flags().StringVarP(&drawScript, "script", "s", "-", "Script file, - for stdin")
	drawCmd.Flags().StringVar(&drawPNG, "png", "", "Write the final blueprint drawing to this PNG file")
	drawCmd.Flags().StringVar(&drawOverlayPNG, "overlay-png", "", "Render the polygon overlay separately into this PNG file")
	rootCmd.AddCommand(drawCmd)
}

func runDraw(cmd *cobra.Command, args []string) error {
	key, err := parseKey(args)
	if err != nil {
		return printer.Error("invalid blueprint", err.Error(), []string{"Name it as AUTHOR/NAME, e.g. ana/house"})
	}

	ctx, stop := signalContext()
	defer stop()

	st, err := httpstore.New(cfg.Store.URL)
	if err != nil {
		return printer.Error("invalid store URL", err.Error(), nil)
	}

	bp, err := loadForEdit(ctx, st, key, drawNew)
	if err != nil {
		if store.IsNotFound(err) {
			return printer.Error(
				fmt.Sprintf("blueprint '%s' not found", key),
				"There is no saved blueprint with that author and name.",
				[]string{fmt.Sprintf("Start it as a new blueprint:\n  blueprints draw %s --new", key)},
			)
		}
		return printer.ErrorWithContext("failed to load blueprint", err.Error(),
			map[string]string{"Store": cfg.Store.URL}, nil)
	}

	var in io.Reader = cmd.InOrStdin()
	if drawScript != "-" {
		f, err := os.Open(drawScript)
		if err != nil {
			return printer.Error("cannot read script", err.Error(), nil)
		}
		defer f.Close()
		in = f
	}

	mgr, endpoint, err := newManager(cfg.Transport)
	if err != nil {
		return printer.Error("invalid transport", err.Error(), nil)
	}
	defer mgr.Close()

	surface := canvas.NewRaster(cfg.Canvas.Width, cfg.Canvas.Height)
	defer surface.Close()
	opts := []editor.Option{editor.WithMargin(cfg.Canvas.Margin)}
	var overlaySurface *canvas.Raster
	if drawOverlayPNG != "" {
		overlaySurface = canvas.NewRaster(cfg.Canvas.Width, cfg.Canvas.Height)
		defer overlaySurface.Close()
		opts = append(opts, editor.WithOverlaySurface(overlaySurface))
	}

	out := printer.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	ed := editor.New(mgr, st, surface, opts...)
	sess, err := ed.Open(ctx, bp, editor.OpenOptions{New: drawNew, Overlay: drawOverlay || drawOverlayPNG != ""})
	if err != nil {
		return printer.ErrorWithContext("failed to open blueprint", err.Error(),
			map[string]string{"Transport": cfg.Transport.Kind, "Endpoint": endpoint}, nil)
	}
	out.Step("editing %s (%d saved points)\n", key, len(bp.Points))

	scriptErr := runScript(ctx, sess, in, out)

	persisted, local, collaborative := sess.Counts()
	if err := sess.Close(context.WithoutCancel(ctx), drawSave); err != nil {
		return printer.ErrorWithContext("failed to save blueprint", err.Error(),
			map[string]string{"Store": cfg.Store.URL, "Blueprint": key.String()}, nil)
	}
	if drawSave && local+collaborative > 0 {
		out.Success("saved %s (%d points)\n", key, persisted+local+collaborative)
	}

	if drawPNG != "" {
		if err := surface.SavePNG(drawPNG); err != nil {
			return printer.Error("failed to write PNG", err.Error(), nil)
		}
		out.Success("wrote %s\n", drawPNG)
	}
	if overlaySurface != nil {
		if err := overlaySurface.SavePNG(drawOverlayPNG); err != nil {
			return printer.Error("failed to write PNG", err.Error(), nil)
		}
		out.Success("wrote %s\n", drawOverlayPNG)
	}

	if scriptErr != nil {
		return printer.Error("script failed", scriptErr.Error(), nil)
	}
	return nil
}

// loadForEdit fetches the saved blueprint, or starts an empty one when isNew.
func loadForEdit(ctx context.Context, st store.Repository, key blueprint.Key, isNew bool) (*blueprint.Blueprint, error) {
	if isNew {
		return &blueprint.Blueprint{Author: key.Author, Name: key.Name, Points: []blueprint.Point{}}, nil
	}
	return st.Get(ctx, key)
}
