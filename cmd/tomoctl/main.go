// tomoctl - менеджер детекторов и поворотных столов томографа: консольный
// менеджер, HTTP-сервис, рабочие процессы устройств и отладочный сервер.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tomoctl",
	Short: "Orchestrates flat-panel detectors and rotary stages.",
	Long:  `Spawns one worker process per configured device, relays commands to them over the encrypted socket protocol and streams their replies and images.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Path to the .env file")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (env vars override it)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
