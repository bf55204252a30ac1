package protocol

import "fmt"

// ProtocolError описывает нарушение формата кадра: неполный заголовок,
// неизвестный тип полезной нагрузки или испорченное тело команды.
// Ошибка фатальна для соединения, на котором она возникла.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol: " + e.Op
	}
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// CryptoError возвращается, если тело кадра не удалось расшифровать
// (неверный ключ, длина не кратна блоку, испорченное выравнивание).
type CryptoError struct {
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("protocol: decrypt: %v", e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

func protoErr(op string, format string, args ...any) error {
	return &ProtocolError{Op: op, Err: fmt.Errorf(format, args...)}
}
