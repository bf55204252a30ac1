// Package protocol реализует кадрированный зашифрованный протокол обмена
// между менеджером и рабочими процессами устройств.
//
// Кадр: func_code(4) | status_code(4) | payload_type(1) | length(4), big-endian,
// затем length байт тела: IV(16) и шифротекст AES-256-CBC с PKCS#7.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// HeaderSize - размер заголовка кадра в байтах.
	HeaderSize = 13
	// MaxPayloadSize ограничивает длину тела одного кадра.
	MaxPayloadSize = 512 << 20
)

// Message - декодированный кадр.
type Message struct {
	Function uint32
	Status   uint32
	Type     PayloadType
	Payload  any
}

// Args возвращает полезную нагрузку как список аргументов вызова:
// None - пустой список, команда - ее аргументы, скаляр - список из одного элемента.
func (m *Message) Args() []any {
	switch p := m.Payload.(type) {
	case nil:
		return nil
	case []any:
		return p
	default:
		return []any{p}
	}
}

// Codec кодирует и декодирует кадры с общим секретом.
// Безопасен для одновременного использования.
type Codec struct {
	s *sealer
}

// NewCodec создает кодек для пароля secret.
func NewCodec(secret string) (*Codec, error) {
	s, err := newSealer(secret)
	if err != nil {
		return nil, err
	}
	return &Codec{s: s}, nil
}

// Encode формирует полный кадр. Тип полезной нагрузки определяется по значению.
func (c *Codec) Encode(function, status uint32, payload any) ([]byte, error) {
	t, plain, err := encodeValue(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	body, err := c.s.seal(plain)
	if err != nil {
		return nil, err
	}
	if len(body) > MaxPayloadSize {
		return nil, protoErr("encode", "frame body %d exceeds limit %d", len(body), MaxPayloadSize)
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[0:4], function)
	binary.BigEndian.PutUint32(frame[4:8], status)
	frame[8] = byte(t)
	binary.BigEndian.PutUint32(frame[9:13], uint32(len(body)))
	return append(frame, body...), nil
}

// Decode читает ровно один кадр из r.
// io.EOF до первого байта заголовка возвращается без обертки.
func (c *Codec) Decode(r io.Reader) (*Message, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &ProtocolError{Op: "read header", Err: err}
	}

	m := &Message{
		Function: binary.BigEndian.Uint32(hdr[0:4]),
		Status:   binary.BigEndian.Uint32(hdr[4:8]),
		Type:     PayloadType(hdr[8]),
	}
	if m.Type > TypeCommand {
		return nil, protoErr("read header", "unknown payload type 0x%02x", hdr[8])
	}
	size := binary.BigEndian.Uint32(hdr[9:13])
	if size > MaxPayloadSize {
		return nil, protoErr("read header", "frame body %d exceeds limit %d", size, MaxPayloadSize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &ProtocolError{Op: "read body", Err: err}
	}
	plain, err := c.s.open(body)
	if err != nil {
		return nil, err
	}
	if m.Payload, err = decodeValue(m.Type, plain); err != nil {
		return nil, err
	}
	return m, nil
}

// Writer сериализует запись кадров в общий поток.
type Writer struct {
	mu    sync.Mutex
	w     io.Writer
	codec *Codec
}

// NewWriter оборачивает w.
func NewWriter(w io.Writer, codec *Codec) *Writer {
	return &Writer{w: w, codec: codec}
}

// WriteMessage кодирует и целиком записывает один кадр.
func (w *Writer) WriteMessage(function, status uint32, payload any) error {
	frame, err := w.codec.Encode(function, status, payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.w.Write(frame)
	return err
}
