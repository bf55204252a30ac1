// Package workertest поднимает среду рабочего процесса поверх loopback TCP
// для тестов. Вторая сторона соединения играет роль менеджера.
package workertest

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/worker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Password - общий секрет тестовых соединений.
const Password = "test-secret"

// Logger возвращает логгер, который ничего не выводит.
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Pipe создает среду cfg и кадрированное соединение менеджера.
func Pipe(t *testing.T, cfg worker.Config) (*worker.Runtime, *protocol.Conn) {
	t.Helper()
	if cfg.Password == "" {
		cfg.Password = Password
	}
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 50 * time.Millisecond
	}
	codec, err := protocol.NewCodec(cfg.Password)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
	}

	rt := worker.New(protocol.NewConn(client, codec, 5*time.Second), cfg, Logger())
	manager := protocol.NewConn(server, codec, 5*time.Second)
	t.Cleanup(func() {
		_ = rt.Close()
		_ = manager.Close()
	})
	return rt, manager
}

// Next читает следующий кадр менеджера с таймаутом.
func Next(t *testing.T, c *protocol.Conn) *protocol.Message {
	t.Helper()
	ready, err := c.Poll(5*time.Second, nil)
	require.NoError(t, err)
	require.True(t, ready, "no message from worker")
	msg, err := c.Receive()
	require.NoError(t, err)
	return msg
}

// Until пропускает кадры, пока не встретится функция function.
func Until(t *testing.T, c *protocol.Conn, function uint32) *protocol.Message {
	t.Helper()
	for i := 0; i < 64; i++ {
		if msg := Next(t, c); msg.Function == function {
			return msg
		}
	}
	t.Fatalf("function %d not received", function)
	return nil
}
