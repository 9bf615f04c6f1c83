package main

import (
	"github.com/spf13/cobra"

	"simcapture-go/internal/controller"
)

var controllerOpts struct {
	url      string
	track    bool
	imageDir string
}

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run a scripted controller that answers telemetry with synthetic results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		mode := controller.ModeDetect
		if controllerOpts.track {
			mode = controller.ModeTrack
		}
		c := controller.New(controller.Options{
			URL:      controllerOpts.url,
			Mode:     mode,
			ImageDir: controllerOpts.imageDir,
		})
		return c.Run(cmd.Context())
	},
}

func init() {
	controllerCmd.Flags().StringVar(&controllerOpts.url, "url", "ws://localhost:4567/ws", "Capture service websocket URL")
	controllerCmd.Flags().BoolVar(&controllerOpts.track, "track", false, "Reply with track events instead of detect")
	controllerCmd.Flags().StringVar(&controllerOpts.imageDir, "image-folder", "", "Save received frames to this directory")
	rootCmd.AddCommand(controllerCmd)
}
