package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// PayloadType - тег типа полезной нагрузки в заголовке кадра.
type PayloadType uint8

const (
	TypeNone       PayloadType = 0x00
	TypeInt        PayloadType = 0x01
	TypeFloat      PayloadType = 0x02
	TypeString     PayloadType = 0x03
	TypeNumpyArray PayloadType = 0x04
	TypeCommand    PayloadType = 0x05
)

func (t PayloadType) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "FLOAT"
	case TypeString:
		return "STRING"
	case TypeNumpyArray:
		return "NUMPY_ARRAY"
	case TypeCommand:
		return "COMMAND"
	}
	return fmt.Sprintf("PayloadType(%d)", uint8(t))
}

// Args - упорядоченный список аргументов команды. Элементы могут быть
// любыми поддерживаемыми значениями, в том числе вложенными списками.
type Args = []any

const argHeaderSize = 5 // тег (1) + длина (4)

// encodeValue определяет тип значения и формирует его тело.
func encodeValue(v any) (PayloadType, []byte, error) {
	switch x := v.(type) {
	case nil:
		return TypeNone, nil, nil
	case bool:
		if x {
			return encodeInt(1)
		}
		return encodeInt(0)
	case int:
		return encodeInt(int64(x))
	case int8:
		return encodeInt(int64(x))
	case int16:
		return encodeInt(int64(x))
	case int32:
		return encodeInt(int64(x))
	case int64:
		return encodeInt(x)
	case uint:
		return encodeUint(uint64(x))
	case uint8:
		return encodeInt(int64(x))
	case uint16:
		return encodeInt(int64(x))
	case uint32:
		return encodeInt(int64(x))
	case uint64:
		return encodeUint(x)
	case float32:
		return encodeFloat(float64(x))
	case float64:
		return encodeFloat(x)
	case string:
		return TypeString, []byte(x), nil
	case []byte:
		return TypeString, append([]byte(nil), x...), nil
	case *Array:
		if x == nil {
			return TypeNone, nil, nil
		}
		b, err := encodeArray(x)
		return TypeNumpyArray, b, err
	case Array:
		b, err := encodeArray(&x)
		return TypeNumpyArray, b, err
	case []any:
		b, err := encodeCommand(x)
		return TypeCommand, b, err
	}
	return 0, nil, fmt.Errorf("unsupported payload type %T", v)
}

func encodeInt(v int64) (PayloadType, []byte, error) {
	return TypeInt, binary.BigEndian.AppendUint64(nil, uint64(v)), nil
}

func encodeUint(v uint64) (PayloadType, []byte, error) {
	if v > math.MaxInt64 {
		return 0, nil, fmt.Errorf("integer %d overflows int64", v)
	}
	return encodeInt(int64(v))
}

func encodeFloat(v float64) (PayloadType, []byte, error) {
	return TypeFloat, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)), nil
}

// encodeCommand: num_args(4), затем num_args заголовков (тег, длина),
// затем тела аргументов подряд.
func encodeCommand(args []any) ([]byte, error) {
	types := make([]PayloadType, len(args))
	bodies := make([][]byte, len(args))
	total := 4 + argHeaderSize*len(args)
	for i, a := range args {
		t, b, err := encodeValue(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		types[i], bodies[i] = t, b
		total += len(b)
	}

	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, uint32(len(args)))
	for i := range args {
		out = append(out, byte(types[i]))
		out = binary.BigEndian.AppendUint32(out, uint32(len(bodies[i])))
	}
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out, nil
}

func decodeValue(t PayloadType, b []byte) (any, error) {
	switch t {
	case TypeNone:
		if len(b) != 0 {
			return nil, protoErr("decode none", "unexpected %d bytes", len(b))
		}
		return nil, nil
	case TypeInt:
		if len(b) != 8 {
			return nil, protoErr("decode int", "need 8 bytes, got %d", len(b))
		}
		return int64(binary.BigEndian.Uint64(b)), nil
	case TypeFloat:
		if len(b) != 8 {
			return nil, protoErr("decode float", "need 8 bytes, got %d", len(b))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
	case TypeString:
		// не UTF-8: отдаем исходные байты
		if !utf8.Valid(b) {
			return append([]byte(nil), b...), nil
		}
		return string(b), nil
	case TypeNumpyArray:
		return decodeArray(b)
	case TypeCommand:
		return decodeCommand(b)
	}
	return nil, protoErr("decode", "unknown payload type 0x%02x", uint8(t))
}

func decodeCommand(b []byte) ([]any, error) {
	if len(b) < 4 {
		return nil, protoErr("decode command", "missing argument count")
	}
	n := binary.BigEndian.Uint32(b[:4])
	headers := b[4:]
	if uint64(n)*argHeaderSize > uint64(len(headers)) {
		return nil, protoErr("decode command", "%d arguments declared, only %d header bytes", n, len(headers))
	}
	body := headers[n*argHeaderSize:]
	args := make([]any, 0, n)

	var off uint64
	for i := uint32(0); i < n; i++ {
		h := headers[i*argHeaderSize:]
		t := PayloadType(h[0])
		size := uint64(binary.BigEndian.Uint32(h[1:5]))
		if off+size > uint64(len(body)) {
			return nil, protoErr("decode command", "argument %d declares %d bytes, %d left", i, size, uint64(len(body))-off)
		}
		v, err := decodeValue(t, body[off:off+size])
		if err != nil {
			return nil, &ProtocolError{Op: fmt.Sprintf("decode command argument %d", i), Err: err}
		}
		args = append(args, v)
		off += size
	}
	if off != uint64(len(body)) {
		return nil, protoErr("decode command", "%d trailing bytes", uint64(len(body))-off)
	}
	return args, nil
}
