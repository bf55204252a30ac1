package manager

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/sirupsen/logrus"
)

// serve обслуживает одно соединение: рукопожатие, затем пересылка сообщений
// устройства и отправка команд из его очереди.
func (o *Orchestrator) serve(nc net.Conn) {
	conn := protocol.NewConn(nc, o.codec, o.cfg.RoundTrip)
	o.track(conn)
	defer func() {
		o.untrack(conn)
		_ = conn.Close()
	}()
	logger := o.logger.WithField("remote", nc.RemoteAddr().String())

	rec, family, err := o.handshake(conn)
	if err != nil {
		if o.ctx.Err() == nil {
			o.diagnostic("", 0, fmt.Sprintf("rejected connection from %s: %v", nc.RemoteAddr(), err))
		}
		return
	}
	logger = logger.WithField("device", rec.Name)
	logger.Infof("Device connected, session %s", rec.SessionID)

	rec.Queue.SetWaker(conn.Wake)
	o.emit(models.Event{Type: models.EventReady, Device: rec.Name, Kind: rec.Kind})
	o.deviceOnline()

	reason := o.loop(conn, rec, family, logger)
	rec.Queue.SetWaker(nil)
	o.registry.Detach(rec)
	logger.Infof("Device disconnected: %s", reason)
	o.emit(models.Event{Type: models.EventDisconnected, Device: rec.Name, Kind: rec.Kind, Text: reason})
}

// handshake читает первый кадр и регистрирует устройство. Кадр должен быть
// ServerConnect своего семейства с кодом успеха и известным именем.
func (o *Orchestrator) handshake(conn *protocol.Conn) (*Record, *codes.Family, error) {
	ready, err := conn.Poll(o.cfg.RoundTrip, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: %w", err)
	}
	if !ready {
		return nil, nil, errors.New("handshake timed out")
	}
	msg, err := conn.Receive()
	if err != nil {
		return nil, nil, fmt.Errorf("handshake: %w", err)
	}

	name, ok := msg.Payload.(string)
	if !ok {
		return nil, nil, fmt.Errorf("handshake payload is %s, want device name", msg.Type)
	}
	canonical, kind, err := o.registry.Resolve(name)
	if err != nil {
		return nil, nil, err
	}
	family := codes.For(kind)
	if msg.Function != family.ServerConnect() || msg.Status != family.Success() {
		return nil, nil, fmt.Errorf("%s %q: unexpected handshake %s/%s",
			kind, canonical, family.FunctionName(msg.Function), family.StatusName(msg.Status))
	}
	rec, err := o.registry.Attach(canonical, kind)
	if err != nil {
		return nil, nil, err
	}
	return rec, family, nil
}

// loop работает до отмены, ошибки чтения или записи. Возвращает причину выхода.
func (o *Orchestrator) loop(conn *protocol.Conn, rec *Record, family *codes.Family, logger *logrus.Entry) string {
	for {
		if o.ctx.Err() != nil {
			return "manager shutdown"
		}

		ready, err := conn.Poll(o.cfg.PollTimeout, rec.Queue.Pending)
		if err != nil {
			return closeReason(err)
		}
		if ready {
			msg, err := conn.Receive()
			if err != nil {
				if o.ctx.Err() == nil {
					o.diagnostic(rec.Name, rec.Kind, fmt.Sprintf("receive: %v", err))
				}
				return closeReason(err)
			}
			o.forward(rec, family, msg, logger)
		}

		for {
			cmd, ok := rec.Queue.Pop()
			if !ok {
				break
			}
			if err := conn.Send(cmd.Function, family.Success(), cmd.Payload); err != nil {
				o.diagnostic(rec.Name, rec.Kind, droppedCommand(family, cmd, err))
				return closeReason(err)
			}
			logger.Debugf("Sent %s", family.FunctionName(cmd.Function))
		}
	}
}

func (o *Orchestrator) forward(rec *Record, family *codes.Family, msg *protocol.Message, logger *logrus.Entry) {
	ev := models.Event{
		Type:         models.EventMessage,
		Device:       rec.Name,
		Kind:         rec.Kind,
		Function:     msg.Function,
		FunctionName: family.FunctionName(msg.Function),
		Status:       msg.Status,
		StatusName:   family.StatusName(msg.Status),
		OK:           msg.Status == family.Success(),
		Payload:      msg.Payload,
	}
	if _, isImage := msg.Payload.(*protocol.Array); isImage {
		ev.ImageName = rec.nextImageName()
	}
	if ev.OK {
		logger.Debug(ev.Line())
	} else {
		logger.Warn(ev.Line())
	}
	o.emit(ev)
}

func closeReason(err error) string {
	if errors.Is(err, io.EOF) {
		return "connection closed by worker"
	}
	return err.Error()
}

// droppedCommand описывает команду, потерянную при ошибке отправки: она уже
// извлечена из очереди, и оператор должен отправить ее заново.
func droppedCommand(family *codes.Family, cmd models.Command, err error) string {
	return fmt.Sprintf("send %s (code %d, payload %v) failed, command dropped and must be re-posted: %v",
		family.FunctionName(cmd.Function), cmd.Function, cmd.Payload, err)
}
