package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/spf13/cobra"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept worker connections and print every decoded message.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		codec, err := protocol.NewCodec(cfg.Password)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", cfg.Addr())
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Addr(), err)
		}
		context.AfterFunc(ctx, func() { ln.Close() })
		fmt.Println(titleStyle.Render(fmt.Sprintf("Listening on %s", ln.Addr())))

		for {
			nc, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			go dump(ctx, protocol.NewConn(nc, codec, cfg.RoundTripTimeout), cfg)
		}
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func dump(ctx context.Context, conn *protocol.Conn, cfg *tomography.Config) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	fmt.Println(successStyle.Render("Connection from " + remote))
	stop := context.AfterFunc(ctx, conn.Wake)
	defer stop()

	for ctx.Err() == nil {
		ready, err := conn.Poll(cfg.Timeout, nil)
		if err != nil {
			report(remote, err)
			return
		}
		if !ready {
			continue
		}
		msg, err := conn.Receive()
		if err != nil {
			report(remote, err)
			return
		}
		fmt.Printf("%s %s function=%d status=%d type=%s %s\n",
			timeStyle.Render(time.Now().Format("15:04:05.000")),
			deviceStyle.Render(remote), msg.Function, msg.Status, msg.Type,
			valueStyle.Render(describe(msg.Payload)))
	}
}

func report(remote string, err error) {
	if errors.Is(err, io.EOF) {
		fmt.Println(timeStyle.Render(remote + " closed the connection"))
		return
	}
	fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %v", remote, err)))
}
