package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/iwtcode/tomographyAdapter/worker"
	"github.com/iwtcode/tomographyAdapter/worker/workertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRuntime(t *testing.T, kind models.DeviceKind, calls ...worker.Call) (*worker.Runtime, *protocol.Conn) {
	t.Helper()
	rt, mgr := workertest.Pipe(t, worker.Config{Name: "dev1", Kind: kind})
	rt.Register(calls...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("runtime did not stop")
		}
	})
	return rt, mgr
}

func TestHandshakeCarriesNameAndSuccess(t *testing.T) {
	rt, mgr := workertest.Pipe(t, worker.Config{Name: "Soloist", Kind: models.Table})
	require.NoError(t, rt.Handshake())

	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.TblServerConnect, msg.Function)
	assert.Equal(t, codes.TblOK, msg.Status)
	assert.Equal(t, "Soloist", msg.Payload)
}

func TestDispatchReplyShapes(t *testing.T) {
	_, mgr := startRuntime(t, models.Table,
		worker.Call{Code: codes.TblHome, Fn: func([]any) (uint32, []any) { return codes.TblOK, nil }},
		worker.Call{Code: codes.TblGetAxisStatus, Fn: func([]any) (uint32, []any) {
			return codes.TblOK, []any{int64(3)}
		}},
		worker.Call{Code: codes.TblMove, Fn: func(args []any) (uint32, []any) {
			return codes.TblOK, args
		}},
	)

	require.NoError(t, mgr.Send(codes.TblHome, codes.TblOK, nil))
	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.TblHome, msg.Function)
	assert.Equal(t, codes.TblOK, msg.Status)
	assert.Nil(t, msg.Payload)

	require.NoError(t, mgr.Send(codes.TblGetAxisStatus, codes.TblOK, nil))
	msg = workertest.Next(t, mgr)
	assert.Equal(t, int64(3), msg.Payload)

	require.NoError(t, mgr.Send(codes.TblMove, codes.TblOK, []any{10.5, 2.0}))
	msg = workertest.Next(t, mgr)
	assert.Equal(t, []any{10.5, 2.0}, msg.Payload)
}

func TestFailureRepliesWithStatusName(t *testing.T) {
	_, mgr := startRuntime(t, models.Detector,
		worker.Call{Code: codes.DetAcquireImage, Fn: func([]any) (uint32, []any) {
			return codes.DetAcqAlreadyRunning, []any{int64(1)}
		}},
	)

	require.NoError(t, mgr.Send(codes.DetAcquireImage, codes.DetOK, int64(2)))
	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.DetAcqAlreadyRunning, msg.Status)
	assert.Equal(t, "ACQ_ALREADY_RUNNING", msg.Payload)
}

func TestUnknownFunctionIsNotImplemented(t *testing.T) {
	_, mgr := startRuntime(t, models.Detector)

	require.NoError(t, mgr.Send(codes.DetGetHwHeaderInfo, codes.DetOK, nil))
	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.DetGetHwHeaderInfo, msg.Function)
	assert.Equal(t, codes.DetFuncNotImpl, msg.Status)

	_, mgr = startRuntime(t, models.Table)
	require.NoError(t, mgr.Send(99, codes.TblOK, nil))
	msg = workertest.Next(t, mgr)
	assert.Equal(t, codes.TblError, msg.Status)
}

func TestPanicInCallIsReported(t *testing.T) {
	_, mgr := startRuntime(t, models.Detector,
		worker.Call{Code: codes.DetAbort, Fn: func([]any) (uint32, []any) { panic("driver crashed") }},
	)
	require.NoError(t, mgr.Send(codes.DetAbort, codes.DetOK, nil))
	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.DetFuncNotImpl, msg.Status)

	require.NoError(t, mgr.Send(codes.DetAbort, codes.DetOK, nil))
	msg = workertest.Next(t, mgr)
	assert.Equal(t, codes.DetAbort, msg.Function)
}

func TestEmitIsSentWithoutWaitingForPoll(t *testing.T) {
	rt, mgr := workertest.Pipe(t, worker.Config{Name: "xrd1", Kind: models.Detector, PollTimeout: 10 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	rt.Emit(codes.DetEndFrameCallback, codes.DetOK, int64(7))

	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.DetEndFrameCallback, msg.Function)
	assert.Equal(t, int64(7), msg.Payload)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRequireWrapsFailure(t *testing.T) {
	rt, mgr := workertest.Pipe(t, worker.Config{Name: "xrd1", Kind: models.Detector})
	rt.Register(worker.Call{Code: codes.DetEnumSensors, Fn: func([]any) (uint32, []any) {
		return codes.DetNoCamera, nil
	}})

	_, err := rt.Require(codes.DetEnumSensors)
	require.ErrorIs(t, err, worker.ErrFatal)
	assert.Contains(t, err.Error(), "NOCAMERA")

	msg := workertest.Next(t, mgr)
	assert.Equal(t, codes.DetNoCamera, msg.Status)

	_, err = rt.Invoke(codes.DetInit)
	assert.Error(t, err)
}

func TestRunEndsWhenManagerCloses(t *testing.T) {
	rt, mgr := workertest.Pipe(t, worker.Config{Name: "xrd1", Kind: models.Detector})
	done := make(chan error, 1)
	go func() { done <- rt.Run(context.Background()) }()

	require.NoError(t, mgr.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestArgHelpers(t *testing.T) {
	args := []any{int64(3), 2.0, "ob", int64(0), 1.5}

	n, err := worker.IntArg(args, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = worker.IntArg(args, 4)
	assert.ErrorIs(t, err, worker.ErrArgs)

	s, err := worker.StringArg(args, 2)
	require.NoError(t, err)
	assert.Equal(t, "ob", s)

	arr, err := worker.ArrayArg(args, 3)
	require.NoError(t, err)
	assert.Nil(t, arr)

	b, err := worker.BoolArg(args, 9, true)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = worker.FloatArg(args, 10)
	assert.ErrorIs(t, err, worker.ErrArgs)

	img, err := protocol.NewArray(1, 2, []uint16{5, 65535})
	require.NoError(t, err)
	values, err := worker.Float64s(img)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 65535}, values)
}
