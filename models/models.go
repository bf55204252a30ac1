package models

import (
	"fmt"
	"strings"
	"time"
)

// DeviceKind - семейство устройства.
type DeviceKind int

const (
	Detector DeviceKind = iota
	Table
)

func (k DeviceKind) String() string {
	switch k {
	case Detector:
		return "detector"
	case Table:
		return "table"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseDeviceKind принимает "detector" или "table".
func ParseDeviceKind(s string) (DeviceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "detector":
		return Detector, nil
	case "table":
		return Table, nil
	}
	return 0, fmt.Errorf("unknown device kind %q", s)
}

func (k DeviceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *DeviceKind) UnmarshalText(b []byte) error {
	v, err := ParseDeviceKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Command - команда, ожидающая отправки рабочему процессу устройства.
type Command struct {
	Function uint32
	Payload  any
}

// EventType - вид события, которое менеджер сообщает наружу.
type EventType string

const (
	// EventReady отправляется один раз после успешного рукопожатия.
	EventReady EventType = "device_ready"
	// EventMessage - декодированное сообщение от устройства.
	EventMessage EventType = "message"
	// EventDiagnostic - ошибка или предупреждение, не привязанное к сообщению.
	EventDiagnostic EventType = "diagnostic"
	// EventDisconnected - соединение устройства закрыто.
	EventDisconnected EventType = "disconnected"
)

// Event - одна запись в упорядоченном потоке событий менеджера.
type Event struct {
	Type         EventType  `json:"type" msgpack:"type"`
	Device       string     `json:"device,omitempty" msgpack:"device,omitempty"`
	Kind         DeviceKind `json:"kind" msgpack:"kind"`
	Function     uint32     `json:"function" msgpack:"function"`
	FunctionName string     `json:"function_name,omitempty" msgpack:"function_name,omitempty"`
	Status       uint32     `json:"status" msgpack:"status"`
	StatusName   string     `json:"status_name,omitempty" msgpack:"status_name,omitempty"`
	OK           bool       `json:"ok" msgpack:"ok"`
	Payload      any        `json:"payload,omitempty" msgpack:"payload,omitempty"`
	ImageName    string     `json:"image_name,omitempty" msgpack:"image_name,omitempty"`
	Text         string     `json:"text,omitempty" msgpack:"text,omitempty"`
	Timestamp    time.Time  `json:"timestamp" msgpack:"timestamp"`
}

// Line возвращает однострочное представление события для журнала и интерфейса,
// например "[xrd1611]: acquire_image: ACQ_ALREADY_RUNNING".
func (e Event) Line() string {
	device := e.Device
	if device == "" {
		device = "manager"
	}
	switch e.Type {
	case EventMessage:
		return fmt.Sprintf("[%s]: %s: %s", device, e.FunctionName, e.StatusName)
	case EventReady:
		return fmt.Sprintf("[%s]: Initialized", device)
	case EventDisconnected:
		if e.Text != "" {
			return fmt.Sprintf("[%s]: Disconnected: %s", device, e.Text)
		}
		return fmt.Sprintf("[%s]: Disconnected", device)
	default:
		return fmt.Sprintf("[%s]: %s", device, e.Text)
	}
}

// DeviceInfo - снимок состояния сконфигурированного устройства.
type DeviceInfo struct {
	Name        string     `json:"name"`
	Kind        DeviceKind `json:"kind"`
	Online      bool       `json:"online"`
	SessionID   string     `json:"session_id,omitempty"`
	ConnectedAt time.Time  `json:"connected_at,omitempty"`
	Pending     int        `json:"pending_commands"`
	PID         int        `json:"pid,omitempty"`
}
