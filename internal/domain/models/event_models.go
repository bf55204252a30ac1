package models

import (
	devices "github.com/iwtcode/tomographyAdapter/models"
	"github.com/iwtcode/tomographyAdapter/protocol"
)

// ImageInfo заменяет пиксели изображения в событиях для внешних приемников.
type ImageInfo struct {
	Rows  int    `json:"rows" msgpack:"rows"`
	Cols  int    `json:"cols" msgpack:"cols"`
	DType string `json:"dtype" msgpack:"dtype"`
	Bytes int    `json:"bytes" msgpack:"bytes"`
}

// Compact возвращает копию события, в которой массив заменен его описанием.
func Compact(ev devices.Event) devices.Event {
	if a, ok := ev.Payload.(*protocol.Array); ok {
		ev.Payload = ImageInfo{Rows: a.Rows, Cols: a.Cols, DType: a.DType.String(), Bytes: len(a.Data)}
	}
	return ev
}
