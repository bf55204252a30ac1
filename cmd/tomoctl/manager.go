package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/spf13/cobra"
)

var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Run the device manager in the console and print its events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		external, _ := cmd.Flags().GetBool("external")
		if err := resolveWorkerCommand(cfg, external); err != nil {
			return err
		}

		client, err := tomography.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := client.Start(ctx); err != nil {
			return err
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("Manager listening on %s", client.Addr())))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range client.Events() {
				fmt.Println(renderEvent(ev))
			}
		}()

		<-ctx.Done()
		fmt.Println("\nSignal received, shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = client.Shutdown(sctx)
		<-done
		return err
	},
}

func init() {
	managerCmd.Flags().Bool("external", false, "Do not spawn workers, wait for them to connect")
	rootCmd.AddCommand(managerCmd)
}

// loadConfig читает --config, если он задан, иначе только окружение.
func loadConfig(cmd *cobra.Command) (*tomography.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return tomography.Load(), nil
	}
	return tomography.LoadFile(path)
}
