package tomography_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	tomography "github.com/iwtcode/tomographyAdapter"
	"github.com/iwtcode/tomographyAdapter/internal/sim"
	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/iwtcode/tomographyAdapter/worker"
	"github.com/iwtcode/tomographyAdapter/worker/table"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const password = "client-secret"

func setupTest(t *testing.T) *tomography.Client {
	t.Helper()
	cfg := &tomography.Config{
		Host:             "127.0.0.1",
		Password:         password,
		Tables:           []string{"Soloist"},
		Timeout:          50 * time.Millisecond,
		RoundTripTimeout: 5 * time.Second,
		StartupTimeout:   5 * time.Second,
		LogLevel:         "off",
	}
	c, err := tomography.New(cfg)
	require.NoError(t, err, "Не удалось создать клиента")

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() {
		cancel()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = c.Shutdown(sctx)
	})
	return c
}

// runTable запускает рабочий процесс стола в этом же процессе.
func runTable(t *testing.T, addr string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	rt, err := worker.Dial(ctx, worker.Config{
		Addr:        addr,
		Name:        "Soloist",
		Kind:        models.Table,
		Password:    password,
		PollTimeout: 50 * time.Millisecond,
		RoundTrip:   5 * time.Second,
		DialTimeout: time.Second,
	}, logger)
	require.NoError(t, err)

	w := table.New(rt, sim.NewStage(sim.DefaultStageConfig()))
	w.Interval = 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func nextMessage(t *testing.T, c *tomography.Client, function uint32) models.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "events closed")
			if ev.Type == models.EventMessage && ev.Function == function {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %d message", function)
		}
	}
}

func TestClientDrivesTable(t *testing.T) {
	c := setupTest(t)
	runTable(t, c.Addr().String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.WaitReady(ctx))

	enabled := nextMessage(t, c, codes.TblEnable)
	require.True(t, enabled.OK)
	require.Equal(t, "[Soloist]: enable: OK", enabled.Line())

	require.NoError(t, c.Post("soloist", "home"))
	home := nextMessage(t, c, codes.TblHome)
	require.True(t, home.OK)

	require.NoError(t, c.Post("Soloist", "get_program_position_feedback"))
	pos := nextMessage(t, c, codes.TblGetProgramPositionFeedback)
	require.Equal(t, 0.0, pos.Payload)

	devices := c.Devices()
	require.Len(t, devices, 1)
	require.True(t, devices[0].Online)
	require.NotEmpty(t, devices[0].SessionID)
}

func TestClientRejectsUnknownNames(t *testing.T) {
	c := setupTest(t)

	err := c.Post("Solist", "home")
	require.True(t, errors.Is(err, apperrors.ErrUnknownDevice))
	require.ErrorContains(t, err, `did you mean "Soloist"`)

	err = c.Post("Soloist", "no_such_function")
	require.ErrorContains(t, err, "unknown table function")
}

func TestPayloadShapes(t *testing.T) {
	require.Nil(t, tomography.Payload())
	require.Equal(t, int64(5), tomography.Payload(int64(5)))
	require.Equal(t, []any{1.5, true}, tomography.Payload(1.5, true))
}
