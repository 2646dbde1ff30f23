package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/frigate"
)

var camerasCmd = &cobra.Command{
	Use:   "cameras",
	Short: "List the cameras mudra would watch",
	Long: `Print the configured camera list, or the cameras reported by the
Frigate API when the configuration does not name any.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cameras := cfg.Frigate.Cameras
		if len(cameras) == 0 {
			fr := frigate.NewClient(cfg.Frigate.BaseURL(), cfg.Frigate.Timeout)
			cameras, err = fr.Cameras(cmd.Context())
			if err != nil {
				return fmt.Errorf("discover cameras: %w", err)
			}
		}

		for _, name := range cameras {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s face recognition: %v\n", name, cfg.UsesFaceRecognition(name))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(camerasCmd)
}
