package sim

import (
	"math"
	"sync"
	"time"

	"github.com/iwtcode/tomographyAdapter/protocol/codes"
)

// Номера элементов состояния контроллера стола.
const (
	StatusItemPositionFeedback = 0
	StatusItemAxisStatus       = 1
	StatusItemVelocity         = 2
)

// Ожидание окончания движения.
const (
	WaitNone       = 0
	WaitMoveDone   = 1
	WaitInPosition = 2
)

// StageConfig задает число осей и шаг модели.
type StageConfig struct {
	Axes int
	// Tick - период, за который ось проходит speed*Tick единиц.
	Tick time.Duration
	// Limit - предел хода оси; ноль отключает проверку.
	Limit float64
}

// DefaultStageConfig - одна ось и шаг 10 мс.
func DefaultStageConfig() StageConfig {
	return StageConfig{Axes: 1, Tick: 10 * time.Millisecond}
}

// Stage - модель контроллера поворотного стола с одной осью. Движение
// интегрируется по времени при каждом обращении к состоянию.
type Stage struct {
	cfg StageConfig
	now func() time.Time

	mu        sync.Mutex
	connected bool
	enabled   bool
	homed     bool
	fault     bool
	waitMode  int
	position  float64
	target    float64
	speed     float64
	freeRun   bool
	updatedAt time.Time
}

// NewStage создает модель стола.
func NewStage(cfg StageConfig) *Stage {
	if cfg.Tick <= 0 {
		cfg.Tick = 10 * time.Millisecond
	}
	return &Stage{cfg: cfg, now: time.Now}
}

// Connect открывает контроллеры и возвращает их число.
func (s *Stage) Connect() (uint32, int) {
	if s.cfg.Axes <= 0 {
		return codes.TblError, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.updatedAt = s.now()
	return codes.TblOK, s.cfg.Axes
}

func (s *Stage) Disconnect() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected, s.enabled = false, false
	s.stopLocked()
	return codes.TblOK
}

// Reset возвращает контроллер в исходное состояние.
func (s *Stage) Reset() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return codes.TblError
	}
	s.advance()
	s.stopLocked()
	s.enabled, s.homed, s.fault = false, false, false
	return codes.TblOK
}

// Abort останавливает движение в текущей точке.
func (s *Stage) Abort() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return codes.TblError
	}
	s.advance()
	s.stopLocked()
	return codes.TblOK
}

func (s *Stage) Enable() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.fault {
		return codes.TblError
	}
	s.enabled = true
	return codes.TblOK
}

func (s *Stage) Disable() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return codes.TblError
	}
	s.advance()
	s.stopLocked()
	s.enabled = false
	return codes.TblOK
}

// FreeRun запускает вращение с постоянной скоростью.
func (s *Stage) FreeRun(speed float64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return codes.TblError
	}
	s.advance()
	s.freeRun, s.speed = true, speed
	return codes.TblOK
}

func (s *Stage) FreeRunStop() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return codes.TblError
	}
	s.advance()
	if s.freeRun {
		s.stopLocked()
	}
	return codes.TblOK
}

// Home выводит ось в нулевое положение.
func (s *Stage) Home() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() {
		return codes.TblError
	}
	s.stopLocked()
	s.position, s.target, s.homed = 0, 0, true
	return codes.TblOK
}

// AcknowledgeAll сбрасывает ошибки оси.
func (s *Stage) AcknowledgeAll() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return codes.TblError
	}
	s.fault = false
	return codes.TblOK
}

// Move перемещает ось на distance (или в точку distance при absolute) со скоростью speed.
func (s *Stage) Move(distance, speed float64, absolute bool) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready() || speed <= 0 || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return codes.TblError
	}
	s.advance()
	s.freeRun = false
	s.speed = speed
	target := distance
	if !absolute {
		target = s.position + distance
	}
	if s.cfg.Limit > 0 && math.Abs(target) > s.cfg.Limit {
		s.stopLocked()
		s.fault = true
		return codes.TblError
	}
	s.target = target
	return codes.TblOK
}

func (s *Stage) WaitMode(mode int) uint32 {
	if mode < WaitNone || mode > WaitInPosition {
		return codes.TblError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitMode = mode
	return codes.TblOK
}

// StatusItem возвращает значение элемента состояния.
func (s *Stage) StatusItem(item int) (uint32, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return codes.TblError, 0
	}
	s.advance()
	switch item {
	case StatusItemPositionFeedback:
		return codes.TblOK, s.position
	case StatusItemAxisStatus:
		return codes.TblOK, float64(s.axisStatus())
	case StatusItemVelocity:
		if s.moving() {
			return codes.TblOK, s.speed
		}
		return codes.TblOK, 0
	}
	return codes.TblError, 0
}

// AxisStatus возвращает битовую маску состояния оси.
func (s *Stage) AxisStatus() (uint32, int64) {
	rc, v := s.StatusItem(StatusItemAxisStatus)
	return rc, int64(v)
}

// PositionFeedback возвращает текущее положение оси.
func (s *Stage) PositionFeedback() (uint32, float64) {
	return s.StatusItem(StatusItemPositionFeedback)
}

func (s *Stage) ready() bool { return s.connected && s.enabled && !s.fault }

func (s *Stage) moving() bool { return s.freeRun || s.position != s.target }

func (s *Stage) axisStatus() int64 {
	var v int64
	if s.homed {
		v |= codes.AxisHomed
	}
	if s.enabled {
		v |= codes.AxisEnabled
	}
	if s.moving() {
		v |= codes.AxisMoving
	}
	if s.fault {
		v |= codes.AxisFault
	}
	return v
}

func (s *Stage) stopLocked() {
	s.freeRun = false
	s.target = s.position
}

// advance сдвигает ось на путь, пройденный с прошлого обращения.
func (s *Stage) advance() {
	now := s.now()
	dt := now.Sub(s.updatedAt)
	s.updatedAt = now
	if dt <= 0 {
		return
	}
	step := s.speed * float64(dt) / float64(s.cfg.Tick)
	switch {
	case s.freeRun:
		s.position += step
		s.target = s.position
	case s.position < s.target:
		s.position = math.Min(s.position+step, s.target)
	case s.position > s.target:
		s.position = math.Max(s.position-step, s.target)
	}
}
