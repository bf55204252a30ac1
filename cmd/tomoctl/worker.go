package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/iwtcode/tomographyAdapter/internal/sim"
	"github.com/iwtcode/tomographyAdapter/manager"
	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/worker"
	"github.com/iwtcode/tomographyAdapter/worker/detector"
	"github.com/iwtcode/tomographyAdapter/worker/table"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker <name>",
	Short: "Run the worker process of one device.",
	Long: `Connects to the manager, performs the handshake and serves commands for one device.
The manager passes its address and the device kind in ` + manager.EnvWorkerAddr + ` and ` + manager.EnvWorkerKind + `.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		name := args[0]

		addr := os.Getenv(manager.EnvWorkerAddr)
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}
		if addr == "" {
			addr = cfg.Addr()
		}

		kindName := os.Getenv(manager.EnvWorkerKind)
		if flagKind, _ := cmd.Flags().GetString("kind"); flagKind != "" {
			kindName = flagKind
		}
		kind, err := resolveKind(cfg, name, kindName)
		if err != nil {
			return err
		}

		logger := tomography.NewLogger(cfg.LogLevel)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rt, err := worker.Dial(ctx, worker.Config{
			Addr:        addr,
			Name:        name,
			Kind:        kind,
			Password:    cfg.Password,
			PollTimeout: cfg.Timeout,
			RoundTrip:   cfg.RoundTripTimeout,
			DialTimeout: 5 * time.Second,
		}, logger)
		if err != nil {
			return err
		}

		switch kind {
		case models.Detector:
			panelCfg := sim.DefaultPanelConfig()
			panelCfg.Rows, _ = cmd.Flags().GetInt("rows")
			panelCfg.Cols, _ = cmd.Flags().GetInt("cols")
			panelCfg.TimeScale, _ = cmd.Flags().GetFloat64("time-scale")
			err = detector.New(rt, sim.NewPanel(panelCfg)).Run(ctx)
		default:
			stageCfg := sim.DefaultStageConfig()
			stageCfg.Limit, _ = cmd.Flags().GetFloat64("limit")
			err = table.New(rt, sim.NewStage(stageCfg)).Run(ctx)
		}
		if errors.Is(err, worker.ErrFatal) {
			logger.Errorf("Worker %s stopped: %v", name, err)
		}
		return err
	},
}

func init() {
	workerCmd.Flags().String("addr", "", "Manager address (default: "+manager.EnvWorkerAddr+" or the configured host:port)")
	workerCmd.Flags().String("kind", "", "Device kind: detector or table (default: "+manager.EnvWorkerKind+")")
	workerCmd.Flags().Int("rows", 256, "Simulated panel rows")
	workerCmd.Flags().Int("cols", 256, "Simulated panel columns")
	workerCmd.Flags().Float64("time-scale", 1, "Simulated panel timer speed-up")
	workerCmd.Flags().Float64("limit", 0, "Simulated stage travel limit, 0 disables it")
	rootCmd.AddCommand(workerCmd)
}

// resolveKind берет тип из окружения, а без него ищет имя в конфигурации.
func resolveKind(cfg *tomography.Config, name, kindName string) (models.DeviceKind, error) {
	if kindName != "" {
		return models.ParseDeviceKind(kindName)
	}
	for _, d := range cfg.Detectors {
		if strings.EqualFold(d, name) {
			return models.Detector, nil
		}
	}
	for _, t := range cfg.Tables {
		if strings.EqualFold(t, name) {
			return models.Table, nil
		}
	}
	return 0, fmt.Errorf("device %q is not configured, pass --kind", name)
}
