package manager

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "manager-secret"

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func setupTest(t *testing.T, cfg Config, spawner Spawner) *Orchestrator {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	cfg.Password = testPassword
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = 50 * time.Millisecond
	}
	if cfg.RoundTrip == 0 {
		cfg.RoundTrip = 2 * time.Second
	}
	o, err := New(cfg, spawner, testLogger())
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, o.Shutdown(ctx))
	})
	return o
}

// stub - рабочий процесс без драйвера: сырое кадрированное соединение.
func stub(t *testing.T, o *Orchestrator, function, status uint32, name string) *protocol.Conn {
	t.Helper()
	codec, err := protocol.NewCodec(testPassword)
	require.NoError(t, err)
	nc, err := net.Dial("tcp", o.Addr().String())
	require.NoError(t, err)
	c := protocol.NewConn(nc, codec, 2*time.Second)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Send(function, status, name))
	return c
}

func receive(t *testing.T, c *protocol.Conn) *protocol.Message {
	t.Helper()
	ready, err := c.Poll(5*time.Second, nil)
	require.NoError(t, err)
	require.True(t, ready, "no command from manager")
	msg, err := c.Receive()
	require.NoError(t, err)
	return msg
}

func waitEvent(t *testing.T, o *Orchestrator, typ models.EventType) models.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-o.Events():
			require.True(t, ok, "event stream closed")
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestHappyPath(t *testing.T) {
	o := setupTest(t, Config{Tables: []string{"Soloist"}}, nil)

	c := stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	ready := waitEvent(t, o, models.EventReady)
	assert.Equal(t, "Soloist", ready.Device)
	assert.Equal(t, models.Table, ready.Kind)
	assert.Equal(t, "[Soloist]: Initialized", ready.Line())

	require.NoError(t, o.PostCommand("soloist", codes.TblHome, nil))
	cmd := receive(t, c)
	assert.Equal(t, codes.TblHome, cmd.Function)
	assert.Equal(t, codes.TblOK, cmd.Status)
	assert.Nil(t, cmd.Payload)

	require.NoError(t, c.Send(codes.TblHome, codes.TblError, "ERROR"))
	ev := waitEvent(t, o, models.EventMessage)
	assert.Equal(t, "home", ev.FunctionName)
	assert.False(t, ev.OK)
	assert.Equal(t, "[Soloist]: home: ERROR", ev.Line())

	devices := o.Devices()
	require.Len(t, devices, 1)
	assert.True(t, devices[0].Online)
	assert.NotEmpty(t, devices[0].SessionID)
}

func TestDetectorSuccessIsZero(t *testing.T) {
	o := setupTest(t, Config{Detectors: []string{"xrd1"}}, nil)
	c := stub(t, o, codes.DetServerConnect, codes.DetOK, "xrd1")
	waitEvent(t, o, models.EventReady)

	require.NoError(t, o.PostCommand("xrd1", codes.DetAcquireImage, int64(4)))
	cmd := receive(t, c)
	assert.Equal(t, codes.DetOK, cmd.Status)
	assert.Equal(t, int64(4), cmd.Payload)
}

func TestBadHandshake(t *testing.T) {
	o := setupTest(t, Config{Detectors: []string{"xrd1"}}, nil)

	stub(t, o, codes.DetServerConnect, codes.DetOK, "unknown-device")
	diag := waitEvent(t, o, models.EventDiagnostic)
	assert.Contains(t, diag.Text, "unknown device")

	stub(t, o, codes.DetServerConnect, codes.DetFuncNotImpl, "xrd1")
	diag = waitEvent(t, o, models.EventDiagnostic)
	assert.Contains(t, diag.Text, "unexpected handshake")

	stub(t, o, codes.TblServerConnect, codes.TblOK, "xrd1")
	waitEvent(t, o, models.EventDiagnostic)

	assert.False(t, o.Devices()[0].Online)
	select {
	case ev := <-o.Events():
		assert.NotEqual(t, models.EventReady, ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCommandsQueuedBeforeHandshake(t *testing.T) {
	o := setupTest(t, Config{Tables: []string{"Soloist"}}, nil)

	require.NoError(t, o.PostCommand("Soloist", codes.TblEnable, nil))
	require.NoError(t, o.PostCommand("Soloist", codes.TblMove, []any{10.0, 5.0}))
	assert.Equal(t, 2, o.Devices()[0].Pending)

	c := stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	assert.Equal(t, codes.TblEnable, receive(t, c).Function)
	move := receive(t, c)
	assert.Equal(t, codes.TblMove, move.Function)
	assert.Equal(t, []any{10.0, 5.0}, move.Payload)
}

func TestQueueFanOutAndFIFO(t *testing.T) {
	o := setupTest(t, Config{Detectors: []string{"xrd1"}, Tables: []string{"Soloist"}}, nil)
	det := stub(t, o, codes.DetServerConnect, codes.DetOK, "xrd1")
	tbl := stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	require.NoError(t, o.WaitReady(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, o.PostCommand("xrd1", codes.DetSetTimerSync, int64(i)))
		require.NoError(t, o.PostCommand("Soloist", codes.TblWaitMode, int64(i)))
	}
	for i := 0; i < 5; i++ {
		d := receive(t, det)
		assert.Equal(t, codes.DetSetTimerSync, d.Function)
		assert.Equal(t, int64(i), d.Payload)

		m := receive(t, tbl)
		assert.Equal(t, codes.TblWaitMode, m.Function)
		assert.Equal(t, int64(i), m.Payload)
	}
}

func TestUnknownDeviceCommand(t *testing.T) {
	o := setupTest(t, Config{Detectors: []string{"xrd1611"}}, nil)

	err := o.PostCommand("xrd16111", codes.DetAbort, nil)
	require.ErrorIs(t, err, apperrors.ErrUnknownDevice)

	diag := waitEvent(t, o, models.EventDiagnostic)
	assert.Contains(t, diag.Text, `did you mean "xrd1611"`)
}

func TestSecondConnectionWithSameName(t *testing.T) {
	o := setupTest(t, Config{Tables: []string{"Soloist", "Spare"}}, nil)
	first := stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	waitEvent(t, o, models.EventReady)

	stub(t, o, codes.TblServerConnect, codes.TblOK, "SOLOIST")
	diag := waitEvent(t, o, models.EventDiagnostic)
	assert.Contains(t, diag.Text, "already connected")

	require.NoError(t, o.PostCommand("Soloist", codes.TblHome, nil))
	assert.Equal(t, codes.TblHome, receive(t, first).Function)
}

func TestDetectorImagesAreNumbered(t *testing.T) {
	o := setupTest(t, Config{Detectors: []string{"xrd1"}}, nil)
	c := stub(t, o, codes.DetServerConnect, codes.DetOK, "xrd1")
	waitEvent(t, o, models.EventReady)

	img, err := protocol.NewArray(2, 2, []uint16{1, 2, 3, 4})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, c.Send(codes.DetEndAcqCallback, codes.DetOK, img))
	}
	assert.Equal(t, "xrd1_0000", waitEvent(t, o, models.EventMessage).ImageName)
	assert.Equal(t, "xrd1_0001", waitEvent(t, o, models.EventMessage).ImageName)
}

func TestDisconnectFreesName(t *testing.T) {
	o := setupTest(t, Config{Tables: []string{"Soloist", "Spare"}}, nil)
	c := stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	waitEvent(t, o, models.EventReady)

	require.NoError(t, c.Close())
	ev := waitEvent(t, o, models.EventDisconnected)
	assert.Equal(t, "Soloist", ev.Device)
	assert.False(t, o.Devices()[0].Online)

	stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	waitEvent(t, o, models.EventReady)
}

func TestListenerClosedWhenAllOnline(t *testing.T) {
	o := setupTest(t, Config{Tables: []string{"Soloist"}}, nil)
	addr := o.Addr().String()
	stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	require.NoError(t, o.WaitReady(context.Background()))

	require.Eventually(t, func() bool {
		c, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			c.Close()
		}
		return err != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestShutdownIsIdempotent(t *testing.T) {
	o, err := New(Config{Addr: "127.0.0.1:0", Password: testPassword, Tables: []string{"Soloist"}, PollTimeout: time.Hour}, nil, testLogger())
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))

	stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	waitEvent(t, o, models.EventReady)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, o.Shutdown(ctx))
	require.NoError(t, o.Shutdown(ctx))
	assert.Less(t, time.Since(start), 4*time.Second)

	for range o.Events() {
	}
	assert.ErrorIs(t, o.PostCommand("Soloist", codes.TblHome, nil), apperrors.ErrShutdown)
	assert.ErrorIs(t, o.Start(context.Background()), apperrors.ErrShutdown)
}

type fakeProcess struct {
	pid         int
	done        chan struct{}
	once        sync.Once
	terminated  bool
	onTerminate func()
}

func (p *fakeProcess) PID() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Err() error            { return nil }
func (p *fakeProcess) exit()                 { p.once.Do(func() { close(p.done) }) }
func (p *fakeProcess) Terminate(time.Duration) error {
	if p.onTerminate != nil {
		p.onTerminate()
	}
	p.terminated = true
	p.exit()
	return nil
}

type fakeSpawner struct {
	mu       sync.Mutex
	requests []SpawnRequest
	procs    []*fakeProcess
}

func (s *fakeSpawner) Spawn(req SpawnRequest) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakeProcess{pid: 1000 + len(s.procs), done: make(chan struct{})}
	s.requests = append(s.requests, req)
	s.procs = append(s.procs, p)
	return p, nil
}

func TestSpawnsWorkerPerDevice(t *testing.T) {
	spawner := &fakeSpawner{}
	o, err := New(Config{
		Addr: "127.0.0.1:0", Password: testPassword,
		Detectors: []string{"xrd1"}, Tables: []string{"Soloist"},
		StartupTimeout: 50 * time.Millisecond,
	}, spawner, testLogger())
	require.NoError(t, err)
	require.NoError(t, o.Start(context.Background()))

	require.Len(t, spawner.requests, 2)
	assert.Equal(t, SpawnRequest{Name: "xrd1", Kind: models.Detector, Addr: o.Addr().String()}, spawner.requests[0])
	assert.Equal(t, "Soloist", spawner.requests[1].Name)
	assert.Equal(t, 1000, o.Devices()[0].PID)

	diag := waitEvent(t, o, models.EventDiagnostic)
	assert.Contains(t, diag.Text, "did not connect")

	spawner.procs[1].exit()
	diag = waitEvent(t, o, models.EventDiagnostic)
	for !strings.Contains(diag.Text, "exited") {
		diag = waitEvent(t, o, models.EventDiagnostic)
	}
	assert.Equal(t, "Soloist", diag.Device)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))
	assert.True(t, spawner.procs[0].terminated)
}

func TestShutdownJoinsHandlersBeforeTerminating(t *testing.T) {
	spawner := &fakeSpawner{}
	o := setupTest(t, Config{Tables: []string{"Soloist"}, StartupTimeout: time.Minute}, spawner)
	stub(t, o, codes.TblServerConnect, codes.TblOK, "Soloist")
	waitEvent(t, o, models.EventReady)

	var online []bool
	spawner.procs[0].onTerminate = func() {
		for _, d := range o.Devices() {
			online = append(online, d.Online)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Shutdown(ctx))
	require.True(t, spawner.procs[0].terminated)
	assert.Equal(t, []bool{false}, online, "handler still attached while its worker was terminated")
}

func TestDroppedCommandNamesTheCommand(t *testing.T) {
	text := droppedCommand(codes.Table, models.Command{Function: codes.TblHome, Payload: int64(3)}, net.ErrClosed)
	assert.Contains(t, text, "send home (code 9, payload 3)")
	assert.Contains(t, text, "re-posted")
	assert.Contains(t, text, net.ErrClosed.Error())
}

func TestExecSpawnerWritesLogAndTerminates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	s := &ExecSpawner{
		Command: []string{"/bin/sh", "-c", `echo "started $1 $TOMO_WORKER_KIND"; exec sleep 30`},
		LogsDir: dir,
	}
	p, err := s.Spawn(SpawnRequest{Name: "xrd1", Kind: models.Detector, Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	assert.NotZero(t, p.PID())

	logPath := filepath.Join(dir, "xrd1.log")
	require.Eventually(t, func() bool {
		b, _ := os.ReadFile(logPath)
		return strings.Contains(string(b), "started xrd1 detector")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, p.Terminate(time.Second))
	require.NoError(t, p.Terminate(time.Second))
	select {
	case <-p.Done():
	default:
		t.Fatal("process still running after Terminate")
	}
	assert.Error(t, p.Err())
}

func TestQueue(t *testing.T) {
	q := NewQueue()
	woken := 0
	q.SetWaker(func() { woken++ })

	q.Push(models.Command{Function: 1})
	q.Push(models.Command{Function: 2})
	assert.Equal(t, 2, woken)
	assert.True(t, q.Pending())

	cmd, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, uint32(1), cmd.Function)
	cmd, _ = q.Pop()
	assert.Equal(t, uint32(2), cmd.Function)
	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers, perProducer = 4, 2000
	q := NewQueue()
	wake := make(chan struct{}, 1)
	q.SetWaker(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(models.Command{Function: uint32(p), Payload: i})
			}
		}(p)
	}
	pushed := make(chan struct{})
	go func() {
		wg.Wait()
		close(pushed)
	}()

	seen := make(map[[2]int]bool, producers*perProducer)
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	consume := func() {
		for {
			cmd, ok := q.Pop()
			if !ok {
				return
			}
			key := [2]int{int(cmd.Function), cmd.Payload.(int)}
			require.False(t, seen[key], "duplicate command %v", key)
			seen[key] = true
			require.Greater(t, key[1], last[key[0]], "producer %d out of order", key[0])
			last[key[0]] = key[1]
		}
	}

	timeout := time.After(10 * time.Second)
	for done := false; !done; {
		select {
		case <-wake:
			consume()
		case <-pushed:
			done = true
		case <-timeout:
			t.Fatal("producers did not finish")
		}
	}
	consume()

	assert.Len(t, seen, producers*perProducer)
	assert.False(t, q.Pending())
}
