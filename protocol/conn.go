package protocol

import (
	"bufio"
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// Conn - кадрированное соединение с ожиданием данных по таймауту и
// возможностью досрочно прервать ожидание из другой горутины.
type Conn struct {
	conn  net.Conn
	br    *bufio.Reader
	codec *Codec
	w     *Writer

	roundTrip time.Duration

	mu      sync.Mutex
	polling bool
	closed  bool
}

// NewConn оборачивает соединение. roundTrip ограничивает чтение и запись одного кадра.
func NewConn(c net.Conn, codec *Codec, roundTrip time.Duration) *Conn {
	return &Conn{
		conn:      c,
		br:        bufio.NewReaderSize(c, 64<<10),
		codec:     codec,
		w:         NewWriter(c, codec),
		roundTrip: roundTrip,
	}
}

// RemoteAddr возвращает адрес удаленной стороны.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Poll ждет начала следующего кадра не дольше timeout. Возвращает false по
// таймауту или после Wake. Если pending сообщает о готовой исходящей работе,
// ожидание пропускается.
func (c *Conn) Poll(timeout time.Duration, pending func() bool) (bool, error) {
	if c.br.Buffered() > 0 {
		return true, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, net.ErrClosed
	}
	c.polling = true
	err := c.conn.SetReadDeadline(time.Now().Add(timeout))
	c.mu.Unlock()
	if err != nil {
		c.endPoll()
		return false, err
	}

	if pending != nil && pending() {
		c.endPoll()
		return false, nil
	}

	_, err = c.br.Peek(1)
	c.endPoll()
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Conn) endPoll() {
	c.mu.Lock()
	c.polling = false
	c.mu.Unlock()
}

// Wake прерывает текущий Poll. Чтение уже начатого кадра не затрагивается.
func (c *Conn) Wake() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polling && !c.closed {
		_ = c.conn.SetReadDeadline(time.Now())
	}
}

// Receive читает один полный кадр.
func (c *Conn) Receive() (*Message, error) {
	c.mu.Lock()
	err := c.conn.SetReadDeadline(c.deadline())
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(c.br)
}

// Send кодирует и отправляет один кадр. Безопасен для одновременного вызова.
func (c *Conn) Send(function, status uint32, payload any) error {
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return err
	}
	return c.w.WriteMessage(function, status, payload)
}

func (c *Conn) deadline() time.Time {
	if c.roundTrip <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.roundTrip)
}

// Close закрывает соединение. Повторный вызов безопасен.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
