package codes

import (
	"github.com/iwtcode/tomographyAdapter/models"
)

// Коды функций контроллера поворотного стола.
const (
	TblServerConnect              uint32 = 0
	TblConnect                    uint32 = 1
	TblDisconnect                 uint32 = 2
	TblReset                      uint32 = 3
	TblAbort                      uint32 = 4
	TblEnable                     uint32 = 5
	TblDisable                    uint32 = 6
	TblFreeRun                    uint32 = 7
	TblFreeRunStop                uint32 = 8
	TblHome                       uint32 = 9
	TblAcknowledgeAll             uint32 = 10
	TblMove                       uint32 = 11
	TblWaitMode                   uint32 = 12
	TblGetStatusItem              uint32 = 13
	TblGetAxisStatus              uint32 = 14
	TblGetProgramPositionFeedback uint32 = 15
)

// Статусы стола: библиотека контроллера возвращает 1 при успехе.
const (
	TblError uint32 = 0
	TblOK    uint32 = 1
)

// Биты состояния оси.
const (
	AxisHomed   int64 = 1 << 0
	AxisEnabled int64 = 1 << 1
	AxisMoving  int64 = 1 << 2
	AxisFault   int64 = 1 << 3
)

// AxisStatusNames раскладывает битовую маску состояния оси на имена.
func AxisStatusNames(v int64) []string {
	var names []string
	for _, bit := range []struct {
		mask int64
		name string
	}{
		{AxisHomed, "Homed"},
		{AxisEnabled, "Enabled"},
		{AxisMoving, "Moving"},
		{AxisFault, "Fault"},
	} {
		if v&bit.mask != 0 {
			names = append(names, bit.name)
		}
	}
	return names
}

var tableFunctions = map[uint32]string{
	TblServerConnect:              "ServerConnect",
	TblConnect:                    "connect",
	TblDisconnect:                 "disconnect",
	TblReset:                      "reset",
	TblAbort:                      "abort",
	TblEnable:                     "enable",
	TblDisable:                    "disable",
	TblFreeRun:                    "free_run",
	TblFreeRunStop:                "free_run_stop",
	TblHome:                       "home",
	TblAcknowledgeAll:             "acknowledge_all",
	TblMove:                       "move",
	TblWaitMode:                   "wait_mode",
	TblGetStatusItem:              "get_status_item",
	TblGetAxisStatus:              "get_axis_status",
	TblGetProgramPositionFeedback: "get_program_position_feedback",
}

var tableStatuses = map[uint32]string{
	TblError: "ERROR",
	TblOK:    "OK",
}

// Table - таблица кодов поворотного стола.
var Table = newFamily(models.Table, TblOK, TblServerConnect, TblError, TblError, tableFunctions, tableStatuses)
