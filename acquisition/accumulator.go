// Package acquisition накапливает кадры последовательности съемки,
// усредняет их и ведет корректирующие изображения детектора.
package acquisition

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iwtcode/tomographyAdapter/protocol"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
)

var (
	ErrAlreadyRunning = errors.New("acquisition already running")
	ErrNotRunning     = errors.New("no acquisition in progress")
	ErrInvalidFrames  = errors.New("frame count must be positive")
	ErrShape          = errors.New("image shape mismatch")
	ErrBinning        = errors.New("invalid binning mode")
	ErrCorrection     = errors.New("invalid correction")
)

// Status переводит ошибку пакета в статус детектора.
func Status(err error) uint32 {
	switch {
	case err == nil:
		return codes.DetOK
	case errors.Is(err, ErrAlreadyRunning):
		return codes.DetAcqAlreadyRunning
	case errors.Is(err, ErrNotRunning):
		return codes.DetInvalidFuncCall
	case errors.Is(err, ErrBinning):
		return codes.DetAcq
	case errors.Is(err, ErrCorrection):
		return codes.DetAcquisition
	default:
		return codes.DetInvalidParam
	}
}

// State - состояние последовательности.
type State int

const (
	Idle State = iota
	SequenceOpen
)

func (s State) String() string {
	if s == SequenceOpen {
		return "sequence_open"
	}
	return "idle"
}

// Frame - результат одного кадра, который пересылается менеджеру.
type Frame struct {
	Number int
	Total  int
	Image  *protocol.Array
}

// Result - итог последовательности: усредненное изображение uint16 и статус
// OK, если получено ровно запрошенное число кадров, иначе ACQUISITION.
type Result struct {
	Status uint32
	Frames int
	Total  int
	Image  *protocol.Array
}

// OK сообщает, получены ли все кадры.
func (r Result) OK() bool { return r.Status == codes.DetOK }

// Machine - автомат последовательности съемки. Методы безопасны для вызова
// из горутины драйвера одновременно с командным циклом.
type Machine struct {
	mu sync.Mutex

	state            State
	frameNumber      int
	framesInSequence int
	buffer           []uint32

	corr *Correction
}

// NewMachine создает автомат для сенсора rows x cols в режиме DefaultBinning.
func NewMachine(rows, cols int) *Machine {
	return &Machine{
		buffer: make([]uint32, rows*cols),
		corr:   NewCorrection(rows, cols),
	}
}

// State возвращает текущее состояние.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Progress возвращает номер последнего принятого кадра и длину последовательности.
func (m *Machine) Progress() (frame, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameNumber, m.framesInSequence
}

// Dims возвращает текущие размеры кадра.
func (m *Machine) Dims() (rows, cols int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.corr.Dims()
}

// Binning возвращает текущий режим биннинга.
func (m *Machine) Binning() BinningMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.corr.Mode()
}

// CorrectionsLoaded сообщает, нужно ли запускать съемку с предзагруженными коррекциями.
func (m *Machine) CorrectionsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.corr.Loaded()
}

// StartSequence открывает последовательность из frames кадров.
// Повторный вызов при открытой последовательности состояние не меняет.
func (m *Machine) StartSequence(frames int) error {
	if frames <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFrames, frames)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SequenceOpen {
		return ErrAlreadyRunning
	}
	m.state = SequenceOpen
	m.frameNumber = 0
	m.framesInSequence = frames
	clear(m.buffer)
	return nil
}

// OnFrameEnd принимает очередной кадр. Кадры сверх запрошенного числа и
// кадры вне последовательности отбрасываются (ok = false).
func (m *Machine) OnFrameEnd(raw []uint16) (f Frame, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != SequenceOpen {
		return Frame{}, false, ErrNotRunning
	}
	if m.frameNumber >= m.framesInSequence {
		return Frame{}, false, nil
	}
	if len(raw) != len(m.buffer) {
		return Frame{}, false, fmt.Errorf("%w: frame has %d pixels, want %d", ErrShape, len(raw), len(m.buffer))
	}

	frame := append([]uint16(nil), raw...)
	if m.corr.Loaded() {
		m.corr.Apply(frame)
	}
	m.frameNumber++
	for i, v := range frame {
		m.buffer[i] += uint32(v)
	}

	rows, cols := m.corr.Dims()
	img, err := protocol.NewArray(rows, cols, frame)
	if err != nil {
		return Frame{}, false, err
	}
	return Frame{Number: m.frameNumber, Total: m.framesInSequence, Image: img}, true, nil
}

// OnSequenceEnd закрывает последовательность: усредняет буфер, обнуляет его
// и возвращает автомат в Idle при любом исходе.
func (m *Machine) OnSequenceEnd() (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != SequenceOpen {
		return Result{}, ErrNotRunning
	}
	return m.finishLocked(), nil
}

// Abort закрывает открытую последовательность как неуспешную.
func (m *Machine) Abort() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != SequenceOpen {
		return Result{}, false
	}
	res := m.finishLocked()
	res.Status = codes.DetAcquisition
	return res, true
}

func (m *Machine) finishLocked() Result {
	avg := make([]uint16, len(m.buffer))
	for i, v := range m.buffer {
		avg[i] = uint16(v / uint32(m.framesInSequence))
	}
	status := codes.DetAcquisition
	if m.frameNumber == m.framesInSequence {
		status = codes.DetOK
	}
	rows, cols := m.corr.Dims()
	img, _ := protocol.NewArray(rows, cols, avg)

	res := Result{Status: status, Frames: m.frameNumber, Total: m.framesInSequence, Image: img}
	clear(m.buffer)
	m.state = Idle
	return res
}

// SetBinningMode меняет размеры кадра и пересчитывает коррекции.
// Во время съемки режим менять нельзя.
func (m *Machine) SetBinningMode(mode BinningMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SequenceOpen {
		return ErrAlreadyRunning
	}
	if err := m.corr.SetBinning(mode); err != nil {
		return err
	}
	rows, cols := m.corr.Dims()
	m.buffer = make([]uint32, rows*cols)
	return nil
}

// SetCorrection загружает корректирующее изображение в полном разрешении сенсора.
func (m *Machine) SetCorrection(kind CorrectionKind, image []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.corr.Set(kind, image)
}

// BadPixels возвращает число дефектных пикселей в текущем разрешении.
func (m *Machine) BadPixels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.corr.BadPixels())
}
