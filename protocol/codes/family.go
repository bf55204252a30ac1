// Package codes содержит таблицы кодов функций и статусов для каждого
// семейства устройств. Коды успеха у семейств различаются: детектор
// сообщает 0, поворотный стол - 1.
package codes

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/iwtcode/tomographyAdapter/models"
)

// Unknown возвращается для кодов, отсутствующих в таблице.
const Unknown = "UNKNOWN"

// Family описывает коды одного семейства устройств.
type Family struct {
	kind          models.DeviceKind
	success       uint32
	serverConnect uint32
	notImpl       uint32
	badArgs       uint32
	functions     map[uint32]string
	statuses      map[uint32]string
	byName        map[string]uint32
}

func newFamily(kind models.DeviceKind, success, serverConnect, notImpl, badArgs uint32, functions, statuses map[uint32]string) *Family {
	byName := make(map[string]uint32, len(functions))
	for code, name := range functions {
		byName[strings.ToLower(name)] = code
	}
	return &Family{
		kind:          kind,
		success:       success,
		serverConnect: serverConnect,
		notImpl:       notImpl,
		badArgs:       badArgs,
		functions:     functions,
		statuses:      statuses,
		byName:        byName,
	}
}

// Kind возвращает тип устройства семейства.
func (f *Family) Kind() models.DeviceKind { return f.kind }

// Success - статус успешного выполнения для этого семейства.
func (f *Family) Success() uint32 { return f.success }

// ServerConnect - код функции рукопожатия.
func (f *Family) ServerConnect() uint32 { return f.serverConnect }

// NotImplemented - статус, которым рабочий процесс отвечает на неизвестный код функции.
func (f *Family) NotImplemented() uint32 { return f.notImpl }

// InvalidArgument - статус ответа на вызов с неверными аргументами.
func (f *Family) InvalidArgument() uint32 { return f.badArgs }

// FunctionName возвращает символьное имя кода функции.
func (f *Family) FunctionName(code uint32) string {
	if name, ok := f.functions[code]; ok {
		return name
	}
	return Unknown
}

// StatusName возвращает символьное имя статуса.
func (f *Family) StatusName(code uint32) string {
	if name, ok := f.statuses[code]; ok {
		return name
	}
	return Unknown
}

// Function ищет код функции по имени (без учета регистра).
func (f *Family) Function(name string) (uint32, bool) {
	code, ok := f.byName[strings.ToLower(name)]
	return code, ok
}

// ParseFunction принимает имя функции или ее числовой код.
func (f *Family) ParseFunction(s string) (uint32, error) {
	if code, ok := f.Function(s); ok {
		return code, nil
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		if _, ok := f.functions[uint32(n)]; ok {
			return uint32(n), nil
		}
	}
	return 0, fmt.Errorf("unknown %s function %q", f.kind, s)
}

// FunctionNames возвращает имена всех функций в порядке кодов.
func (f *Family) FunctionNames() []string {
	list := make([]uint32, 0, len(f.functions))
	for code := range f.functions {
		list = append(list, code)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	names := make([]string, len(list))
	for i, code := range list {
		names[i] = f.functions[code]
	}
	return names
}

// For возвращает таблицу кодов для типа устройства.
func For(kind models.DeviceKind) *Family {
	if kind == models.Table {
		return Table
	}
	return Detector
}
