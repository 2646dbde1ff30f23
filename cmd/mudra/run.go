package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/frigate"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the detection service until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		fr := frigate.NewClient(cfg.Frigate.BaseURL(), cfg.Frigate.Timeout)
		cameras := app.ResolveCameras(ctx, cfg, fr)

		log.WithFields(log.Fields{
			"version": Version,
			"cameras": cameras,
			"topic":   cfg.Gesture.Topic,
		}).Info("starting mudra")

		a, err := app.New(cfg, cameras)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warnf("shutdown: %v", err)
			}
		}()

		if err := a.Run(ctx); err != nil {
			return err
		}
		log.Info("mudra stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
