// Package manager - сторона менеджера: прием соединений рабочих процессов,
// реестр устройств с очередями команд и запуск процессов устройств.
package manager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/sirupsen/logrus"
)

// Config - параметры оркестратора.
type Config struct {
	Addr      string
	Password  string
	Detectors []string
	Tables    []string

	// PollTimeout ограничивает одно ожидание данных обработчиком.
	PollTimeout time.Duration
	// RoundTrip ограничивает чтение и запись одного кадра.
	RoundTrip time.Duration
	// StartupTimeout - срок, за который запущенные процессы должны подключиться.
	StartupTimeout time.Duration
	// Grace - пауза между SIGTERM и Kill при остановке.
	Grace time.Duration
	// EventBuffer - емкость канала событий.
	EventBuffer int
}

func (c *Config) setDefaults() {
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.RoundTrip <= 0 {
		c.RoundTrip = 10 * time.Second
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 30 * time.Second
	}
	if c.Grace <= 0 {
		c.Grace = 2 * time.Second
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 1024
	}
}

// Orchestrator владеет реестром, очередями, обработчиками соединений и
// процессами устройств.
type Orchestrator struct {
	cfg      Config
	codec    *protocol.Codec
	spawner  Spawner
	registry *Registry
	logger   *logrus.Entry

	events   chan models.Event
	emitMu   sync.RWMutex
	closed   bool
	stopping chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // прием, обработчики, ожидание рукопожатий
	procWG sync.WaitGroup // наблюдение за процессами устройств

	mu       sync.Mutex
	ln       net.Listener
	lnClosed bool
	conns    map[*protocol.Conn]struct{}
	procs    map[string]Process
	started  bool
	ready    chan struct{}
	stopOnce sync.Once
}

// New создает оркестратор. spawner может быть nil: тогда рабочие процессы
// запускаются извне и только подключаются к Addr.
func New(cfg Config, spawner Spawner, logger *logrus.Logger) (*Orchestrator, error) {
	cfg.setDefaults()
	codec, err := protocol.NewCodec(cfg.Password)
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	for _, name := range cfg.Detectors {
		if err := registry.Add(name, models.Detector); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Tables {
		if err := registry.Add(name, models.Table); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{
		cfg:      cfg,
		codec:    codec,
		spawner:  spawner,
		registry: registry,
		logger:   logger.WithField("component", "manager"),
		events:   make(chan models.Event, cfg.EventBuffer),
		stopping: make(chan struct{}),
		conns:    make(map[*protocol.Conn]struct{}),
		procs:    make(map[string]Process),
		ready:    make(chan struct{}),
	}, nil
}

// Start открывает порт, запускает процессы устройств и цикл приема.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	select {
	case <-o.stopping:
		return apperrors.ErrShutdown
	default:
	}
	if o.started {
		return errors.New("manager already started")
	}

	ln, err := net.Listen("tcp", o.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", o.cfg.Addr, err)
	}
	o.ln = ln
	o.started = true
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.logger.Infof("Listening on %s", ln.Addr())

	if o.registry.AllOnline() {
		close(o.ready)
	}

	if o.spawner != nil {
		for _, info := range o.registry.Snapshot() {
			o.spawnLocked(info.Name, info.Kind, ln.Addr().String())
		}
	}

	o.wg.Add(2)
	go o.acceptLoop(ln)
	go o.watchStartup()
	return nil
}

func (o *Orchestrator) spawnLocked(name string, kind models.DeviceKind, addr string) {
	p, err := o.spawner.Spawn(SpawnRequest{Name: name, Kind: kind, Addr: addr})
	if err != nil {
		o.diagnostic(name, kind, fmt.Sprintf("cannot start worker: %v", err))
		return
	}
	o.procs[name] = p
	o.registry.SetPID(name, p.PID())
	o.logger.Infof("Started worker %s (pid %d)", name, p.PID())

	o.procWG.Add(1)
	go func() {
		defer o.procWG.Done()
		<-p.Done()
		if o.ctx.Err() != nil {
			return
		}
		text := "worker exited"
		if err := p.Err(); err != nil {
			text = fmt.Sprintf("worker exited: %v", err)
		}
		o.diagnostic(name, kind, text)
	}()
}

// Addr возвращает адрес прослушивания после Start.
func (o *Orchestrator) Addr() net.Addr {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ln == nil {
		return nil
	}
	return o.ln.Addr()
}

func (o *Orchestrator) acceptLoop(ln net.Listener) {
	defer o.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if o.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				o.logger.Debug("Accept loop stopped")
				return
			}
			o.logger.Errorf("Accept failed: %v", err)
			continue
		}
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.serve(nc)
		}()
	}
}

// closeListener останавливает прием новых соединений.
func (o *Orchestrator) closeListener() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ln != nil && !o.lnClosed {
		o.lnClosed = true
		_ = o.ln.Close()
	}
}

// deviceOnline вызывается обработчиком после регистрации записи.
func (o *Orchestrator) deviceOnline() {
	if !o.registry.AllOnline() {
		return
	}
	o.logger.Info("All devices are online")
	o.closeListener()
	o.mu.Lock()
	select {
	case <-o.ready:
	default:
		close(o.ready)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) watchStartup() {
	defer o.wg.Done()
	timer := time.NewTimer(o.cfg.StartupTimeout)
	defer timer.Stop()
	select {
	case <-o.ctx.Done():
		return
	case <-o.ready:
		return
	case <-timer.C:
	}
	for _, name := range o.registry.Offline() {
		_, kind, _ := o.registry.Resolve(name)
		o.diagnostic(name, kind, fmt.Sprintf("worker did not connect within %s", o.cfg.StartupTimeout))
	}
}

// WaitReady ждет подключения всех устройств.
func (o *Orchestrator) WaitReady(ctx context.Context) error {
	select {
	case <-o.ready:
		return nil
	case <-o.stopping:
		return apperrors.ErrShutdown
	case <-ctx.Done():
		return fmt.Errorf("waiting for %v: %w", o.registry.Offline(), ctx.Err())
	}
}

// PostCommand ставит команду в очередь устройства и будит его обработчик.
// Команды, отправленные до рукопожатия, уходят сразу после него.
func (o *Orchestrator) PostCommand(name string, function uint32, payload any) error {
	select {
	case <-o.stopping:
		return apperrors.ErrShutdown
	default:
	}
	q, err := o.registry.Queue(name)
	if err != nil {
		o.diagnostic(name, 0, err.Error())
		return err
	}
	q.Push(models.Command{Function: function, Payload: payload})
	return nil
}

// Events возвращает упорядоченный поток событий. Канал закрывается после Shutdown.
func (o *Orchestrator) Events() <-chan models.Event { return o.events }

// Devices возвращает состояние сконфигурированных устройств.
func (o *Orchestrator) Devices() []models.DeviceInfo { return o.registry.Snapshot() }

// Family возвращает таблицу кодов устройства.
func (o *Orchestrator) Family(name string) (*codes.Family, error) {
	_, kind, err := o.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return codes.For(kind), nil
}

// Shutdown останавливает прием, будит и дожидается обработчиков, затем
// завершает процессы устройств. Повторный вызов безопасен.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.stopOnce.Do(func() {
		o.logger.Info("Shutting down manager...")
		close(o.stopping)

		o.mu.Lock()
		if o.cancel != nil {
			o.cancel()
		}
		o.mu.Unlock()
		o.closeListener()
		o.wakeAll()

		joined := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(joined)
		}()

		select {
		case <-joined:
		case <-ctx.Done():
			err = fmt.Errorf("manager shutdown: %w", ctx.Err())
			o.closeConns()
			<-joined
		}

		// обработчики завершены, теперь можно останавливать процессы
		o.terminateAll()
		o.procWG.Wait()

		o.emitMu.Lock()
		o.closed = true
		close(o.events)
		o.emitMu.Unlock()
		o.logger.Info("Manager stopped")
	})
	return err
}

func (o *Orchestrator) track(c *protocol.Conn) {
	o.mu.Lock()
	o.conns[c] = struct{}{}
	o.mu.Unlock()
}

func (o *Orchestrator) untrack(c *protocol.Conn) {
	o.mu.Lock()
	delete(o.conns, c)
	o.mu.Unlock()
}

func (o *Orchestrator) wakeAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for c := range o.conns {
		c.Wake()
	}
}

func (o *Orchestrator) terminateAll() {
	var wg sync.WaitGroup
	o.mu.Lock()
	for name, p := range o.procs {
		wg.Add(1)
		go func(name string, p Process) {
			defer wg.Done()
			if err := p.Terminate(o.cfg.Grace); err != nil {
				o.logger.Errorf("Terminate %s: %v", name, err)
			}
		}(name, p)
	}
	o.mu.Unlock()
	wg.Wait()
}

func (o *Orchestrator) closeConns() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for c := range o.conns {
		_ = c.Close()
	}
}

// emit публикует событие. Во время остановки событие отбрасывается, если
// канал заполнен.
func (o *Orchestrator) emit(ev models.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	o.emitMu.RLock()
	defer o.emitMu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.events <- ev:
	case <-o.stopping:
		select {
		case o.events <- ev:
		default:
		}
	}
}

func (o *Orchestrator) diagnostic(device string, kind models.DeviceKind, text string) {
	o.logger.Warnf("[%s]: %s", device, text)
	o.emit(models.Event{Type: models.EventDiagnostic, Device: device, Kind: kind, Text: text})
}
