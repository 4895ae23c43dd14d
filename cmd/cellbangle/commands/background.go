package commands

import (
	"fmt"

	"github.com/nvr-ai/go-cytometry/controller"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

func newBackgroundCommand(load loadFunc) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "background VIDEO|DIR",
		Short: "Write the median background model of a video",
		Long: `Run only the pre-scan pass and write the per-pixel median background as a
single-channel image. Useful for checking that the channel walls and the
illumination were captured without cells.`,
		Example: `  cellbangle background assay.avi -o background.png`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}

			src, err := openSource(args[0])
			if err != nil {
				return err
			}

			model, err := controller.New(cfg.Pipeline).Background(cmd.Context(), src)
			if err != nil {
				return err
			}
			defer model.Close()

			if ok := gocv.IMWrite(output, model.Mat()); !ok {
				return errors.Errorf("write background %s", output)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %d frames)\n",
				output, model.Size().X, model.Size().Y, model.Frames())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "background.png", "output image path")
	return cmd
}
