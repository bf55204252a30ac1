package worker

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwtcode/tomographyAdapter/protocol"
)

// Func выполняет вызов драйвера и возвращает статус и результаты.
type Func func(args []any) (status uint32, results []any)

// Call - запись таблицы диспетчеризации рабочего процесса.
type Call struct {
	Code uint32
	Name string
	Fn   Func
}

// Reply - итог вызова драйвера.
type Reply struct {
	Status  uint32
	Results []any
}

// ErrFatal возвращается, если провалился обязательный вызов. Рабочий процесс
// после этого должен завершиться.
var ErrFatal = errors.New("required call failed")

// ErrArgs описывает неверные аргументы вызова.
var ErrArgs = errors.New("invalid arguments")

// payloadOf упаковывает результаты вызова в одну полезную нагрузку.
func payloadOf(results []any) any {
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	default:
		return results
	}
}

func argAt(args []any, i int) (any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("%w: missing argument %d", ErrArgs, i)
	}
	return args[i], nil
}

// IntArg возвращает целочисленный аргумент i. Целые значения с плавающей
// точкой допускаются.
func IntArg(args []any, i int) (int64, error) {
	v, err := argAt(args, i)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), nil
		}
	}
	return 0, fmt.Errorf("%w: argument %d: want integer, got %T", ErrArgs, i, v)
}

// FloatArg возвращает числовой аргумент i.
func FloatArg(args []any, i int) (float64, error) {
	v, err := argAt(args, i)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	return 0, fmt.Errorf("%w: argument %d: want number, got %T", ErrArgs, i, v)
}

// BoolArg трактует целое как логическое значение; отсутствующий аргумент - def.
func BoolArg(args []any, i int, def bool) (bool, error) {
	if i >= len(args) {
		return def, nil
	}
	n, err := IntArg(args, i)
	return n != 0, err
}

// StringArg возвращает строковый аргумент i.
func StringArg(args []any, i int) (string, error) {
	v, err := argAt(args, i)
	if err != nil {
		return "", err
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: argument %d: want string, got %T", ErrArgs, i, v)
}

// ArrayArg возвращает аргумент-массив i. Целый ноль означает отсутствие массива.
func ArrayArg(args []any, i int) (*protocol.Array, error) {
	v, err := argAt(args, i)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case *protocol.Array:
		return x, nil
	case nil:
		return nil, nil
	case int64:
		if x == 0 {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("%w: argument %d: want array, got %T", ErrArgs, i, v)
}

// Float64s переводит массив любого числового типа в []float64.
func Float64s(a *protocol.Array) ([]float64, error) {
	if a == nil {
		return nil, nil
	}
	switch a.DType {
	case protocol.Float64:
		return protocol.ArrayValues[float64](a)
	case protocol.Float32:
		return widen[float32](protocol.ArrayValues[float32](a))
	case protocol.Uint8:
		return widen[uint8](protocol.ArrayValues[uint8](a))
	case protocol.Int8:
		return widen[int8](protocol.ArrayValues[int8](a))
	case protocol.Uint16:
		return widen[uint16](protocol.ArrayValues[uint16](a))
	case protocol.Int16:
		return widen[int16](protocol.ArrayValues[int16](a))
	case protocol.Uint32:
		return widen[uint32](protocol.ArrayValues[uint32](a))
	case protocol.Int32:
		return widen[int32](protocol.ArrayValues[int32](a))
	case protocol.Uint64, 10:
		return widen[uint64](protocol.ArrayValues[uint64](a))
	case protocol.Int64, 9:
		return widen[int64](protocol.ArrayValues[int64](a))
	}
	return nil, fmt.Errorf("%w: unsupported element type %s", ErrArgs, a.DType)
}

func widen[T protocol.Element](v []T, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out, nil
}
