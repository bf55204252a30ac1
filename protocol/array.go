package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DType - числовой код типа элемента массива. Значения совпадают с номерами
// типов numpy, которые используют рабочие процессы детекторов.
type DType int32

const (
	Int8    DType = 1
	Uint8   DType = 2
	Int16   DType = 3
	Uint16  DType = 4
	Int32   DType = 5
	Uint32  DType = 6
	Int64   DType = 7
	Uint64  DType = 8
	Float32 DType = 11
	Float64 DType = 12

	// Альтернативные номера 64-битных целых (long long на LP64).
	longLong  DType = 9
	uLongLong DType = 10
)

// Size возвращает размер элемента в байтах или 0 для неизвестного типа.
func (d DType) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, longLong, uLongLong, Float64:
		return 8
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64, longLong:
		return "int64"
	case Uint64, uLongLong:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return fmt.Sprintf("dtype(%d)", int32(d))
}

func (d DType) canonical() DType {
	switch d {
	case longLong:
		return Int64
	case uLongLong:
		return Uint64
	}
	return d
}

// Element - ограничение для типизированных помощников NewArray и ArrayValues.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64
}

// Array - двумерный массив в построчном порядке. Data хранит элементы в
// порядке байт little-endian, ровно Rows*Cols*DType.Size() байт.
type Array struct {
	Rows  int
	Cols  int
	DType DType
	Data  []byte
}

// Len возвращает количество элементов.
func (a *Array) Len() int { return a.Rows * a.Cols }

// Validate проверяет согласованность формы, типа и длины данных.
func (a *Array) Validate() error {
	size := a.DType.Size()
	if size == 0 {
		return fmt.Errorf("unknown element type %d", int32(a.DType))
	}
	if a.Rows < 0 || a.Cols < 0 {
		return fmt.Errorf("negative shape %dx%d", a.Rows, a.Cols)
	}
	n := uint64(a.Rows) * uint64(a.Cols)
	if len(a.Data)%size != 0 || n != uint64(len(a.Data)/size) {
		return fmt.Errorf("array %dx%d %s does not match %d data bytes", a.Rows, a.Cols, a.DType, len(a.Data))
	}
	return nil
}

func dtypeOf[T Element]() DType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return Int8
	case uint8:
		return Uint8
	case int16:
		return Int16
	case uint16:
		return Uint16
	case int32:
		return Int32
	case uint32:
		return Uint32
	case int64:
		return Int64
	case uint64:
		return Uint64
	case float32:
		return Float32
	default:
		return Float64
	}
}

// NewArray упаковывает значения values в массив rows x cols.
func NewArray[T Element](rows, cols int, values []T) (*Array, error) {
	if rows*cols != len(values) {
		return nil, fmt.Errorf("shape %dx%d does not fit %d values", rows, cols, len(values))
	}
	var buf bytes.Buffer
	buf.Grow(len(values) * dtypeOf[T]().Size())
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		return nil, err
	}
	return &Array{Rows: rows, Cols: cols, DType: dtypeOf[T](), Data: buf.Bytes()}, nil
}

// ArrayValues распаковывает элементы массива. Тип T должен совпадать с DType.
func ArrayValues[T Element](a *Array) ([]T, error) {
	if a == nil {
		return nil, fmt.Errorf("nil array")
	}
	if want := dtypeOf[T](); a.DType.canonical() != want {
		return nil, fmt.Errorf("array holds %s, requested %s", a.DType, want)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	out := make([]T, a.Len())
	if err := binary.Read(bytes.NewReader(a.Data), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeArray(a *Array) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, arrayHeaderSize, arrayHeaderSize+len(a.Data))
	binary.BigEndian.PutUint32(out[0:4], uint32(a.Rows))
	binary.BigEndian.PutUint32(out[4:8], uint32(a.Cols))
	binary.BigEndian.PutUint32(out[8:12], uint32(a.DType))
	return append(out, a.Data...), nil
}

func decodeArray(b []byte) (*Array, error) {
	if len(b) < arrayHeaderSize {
		return nil, protoErr("decode array", "header needs %d bytes, got %d", arrayHeaderSize, len(b))
	}
	a := &Array{
		Rows:  int(binary.BigEndian.Uint32(b[0:4])),
		Cols:  int(binary.BigEndian.Uint32(b[4:8])),
		DType: DType(int32(binary.BigEndian.Uint32(b[8:12]))),
		Data:  append([]byte(nil), b[arrayHeaderSize:]...),
	}
	if err := a.Validate(); err != nil {
		return nil, &ProtocolError{Op: "decode array", Err: err}
	}
	return a, nil
}

const arrayHeaderSize = 12
