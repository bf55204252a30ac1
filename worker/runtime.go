// Package worker - среда выполнения рабочего процесса устройства: рукопожатие
// с менеджером, таблица диспетчеризации и командный цикл.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/sirupsen/logrus"
)

// Config - параметры подключения рабочего процесса к менеджеру.
type Config struct {
	Addr        string
	Name        string
	Kind        models.DeviceKind
	Password    string
	PollTimeout time.Duration
	RoundTrip   time.Duration
	DialTimeout time.Duration
}

type outbound struct {
	function, status uint32
	payload          any
}

// Runtime обслуживает одно соединение с менеджером.
type Runtime struct {
	name   string
	family *codes.Family
	conn   *protocol.Conn
	logger *logrus.Entry

	pollTimeout time.Duration
	calls       map[uint32]Call
	outbox      chan outbound
	done        chan struct{}
	closeOnce   sync.Once
}

// Dial подключается к менеджеру и отправляет рукопожатие.
func Dial(ctx context.Context, cfg Config, logger *logrus.Logger) (*Runtime, error) {
	codec, err := protocol.NewCodec(cfg.Password)
	if err != nil {
		return nil, err
	}
	d := net.Dialer{Timeout: cfg.DialTimeout}
	logger.Infof("Connecting to server at %s", cfg.Addr)
	c, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to server: %w", err)
	}
	rt := New(protocol.NewConn(c, codec, cfg.RoundTrip), cfg, logger)
	if err := rt.Handshake(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// New создает среду поверх уже установленного соединения.
func New(conn *protocol.Conn, cfg Config, logger *logrus.Logger) *Runtime {
	poll := cfg.PollTimeout
	if poll <= 0 {
		poll = time.Second
	}
	return &Runtime{
		name:        cfg.Name,
		family:      codes.For(cfg.Kind),
		conn:        conn,
		logger:      logger.WithField("device", cfg.Name),
		pollTimeout: poll,
		calls:       make(map[uint32]Call),
		outbox:      make(chan outbound, 256),
		done:        make(chan struct{}),
	}
}

// Family возвращает таблицу кодов устройства.
func (r *Runtime) Family() *codes.Family { return r.family }

// Logger возвращает логгер с полем устройства.
func (r *Runtime) Logger() *logrus.Entry { return r.logger }

// Handshake отправляет ServerConnect с именем устройства и кодом успеха семейства.
func (r *Runtime) Handshake() error {
	if err := r.conn.Send(r.family.ServerConnect(), r.family.Success(), r.name); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return nil
}

// Register добавляет вызовы в таблицу диспетчеризации.
func (r *Runtime) Register(calls ...Call) {
	for _, c := range calls {
		if c.Name == "" {
			c.Name = r.family.FunctionName(c.Code)
		}
		r.calls[c.Code] = c
	}
}

// Perform выполняет вызов и всегда отправляет менеджеру ответ: результаты
// при успехе или символьное имя ошибки иначе.
func (r *Runtime) Perform(call Call, args []any) (reply Reply, err error) {
	reply.Status, reply.Results = r.invoke(call, args)

	var payload any
	if reply.Status == r.family.Success() {
		payload = payloadOf(reply.Results)
		r.logger.Debugf("Function %s%v executed successfully", call.Name, args)
	} else {
		payload = r.family.StatusName(reply.Status)
		r.logger.Warnf("Error in %s call: %s", call.Name, payload)
	}

	if err := r.conn.Send(call.Code, reply.Status, payload); err != nil {
		return reply, fmt.Errorf("send %s reply: %w", call.Name, err)
	}
	return reply, nil
}

func (r *Runtime) invoke(call Call, args []any) (status uint32, results []any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorf("Call %s panicked: %v", call.Name, p)
			status, results = r.family.NotImplemented(), nil
		}
	}()
	return call.Fn(args)
}

// Invoke выполняет зарегистрированный вызов по коду.
func (r *Runtime) Invoke(code uint32, args ...any) (Reply, error) {
	call, ok := r.calls[code]
	if !ok {
		return Reply{}, fmt.Errorf("function %s (%d) is not registered", r.family.FunctionName(code), code)
	}
	return r.Perform(call, args)
}

// Require выполняет обязательный вызов: неуспешный статус дает ErrFatal.
func (r *Runtime) Require(code uint32, args ...any) ([]any, error) {
	reply, err := r.Invoke(code, args...)
	if err != nil {
		return nil, err
	}
	if reply.Status != r.family.Success() {
		return nil, fmt.Errorf("%w: %s: %s", ErrFatal, r.family.FunctionName(code), r.family.StatusName(reply.Status))
	}
	return reply.Results, nil
}

// Emit ставит кадр в исходящую очередь. Вызывается из горутин драйвера;
// кадры отправляет командный цикл.
func (r *Runtime) Emit(function, status uint32, payload any) {
	select {
	case r.outbox <- outbound{function: function, status: status, payload: payload}:
		r.conn.Wake()
	case <-r.done:
	}
}

func (r *Runtime) hasOutbound() bool { return len(r.outbox) > 0 }

func (r *Runtime) drainOutbox() error {
	for {
		select {
		case m := <-r.outbox:
			if err := r.conn.Send(m.function, m.status, m.payload); err != nil {
				return fmt.Errorf("send %s: %w", r.family.FunctionName(m.function), err)
			}
		default:
			return nil
		}
	}
}

// Run - командный цикл: ожидает команду не дольше таймаута опроса, выполняет
// ее через таблицу диспетчеризации и отправляет накопленные кадры драйвера.
// Возвращает nil при отмене ctx или закрытии соединения менеджером.
func (r *Runtime) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, r.conn.Wake)
	defer stop()

	for {
		if err := r.drainOutbox(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		ready, err := r.conn.Poll(r.pollTimeout, r.hasOutbound)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Info("Server closed the connection")
				return nil
			}
			return fmt.Errorf("poll: %w", err)
		}
		if !ready {
			continue
		}

		msg, err := r.conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("cannot unpack message: %w", err)
		}
		if err := r.dispatch(msg); err != nil {
			return err
		}
	}
}

func (r *Runtime) dispatch(msg *protocol.Message) error {
	call, ok := r.calls[msg.Function]
	if !ok {
		status := r.family.NotImplemented()
		r.logger.Warnf("Unknown function code %d", msg.Function)
		return r.conn.Send(msg.Function, status, r.family.StatusName(status))
	}
	_, err := r.Perform(call, msg.Args())
	return err
}

// Close освобождает соединение и разблокирует ожидающие Emit.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() { close(r.done) })
	return r.conn.Close()
}
