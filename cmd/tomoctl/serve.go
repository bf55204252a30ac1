package main

import (
	"fmt"
	"os"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/iwtcode/tomographyAdapter/internal/app"
	"github.com/iwtcode/tomographyAdapter/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the manager as an HTTP service with event sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			os.Setenv("TOMO_CONFIG", path)
		}
		external, _ := cmd.Flags().GetBool("external")

		app.New(fx.Decorate(func(cfg *config.AppConfig) (*config.AppConfig, error) {
			if err := resolveWorkerCommand(cfg.Manager, external); err != nil {
				return nil, err
			}
			return cfg, nil
		})).Run()
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("external", false, "Do not spawn workers, wait for them to connect")
	rootCmd.AddCommand(serveCmd)
}

// resolveWorkerCommand подставляет путь к текущему бинарнику вместо
// команды по умолчанию.
func resolveWorkerCommand(cfg *tomography.Config, external bool) error {
	if external {
		cfg.WorkerCommand = nil
		return nil
	}
	if len(cfg.WorkerCommand) == 0 || cfg.WorkerCommand[0] == "tomoctl" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
		cfg.WorkerCommand = append([]string{exe}, cfg.WorkerCommand[min(1, len(cfg.WorkerCommand)):]...)
	}
	return nil
}
