// Package sim содержит программные модели драйверов детектора и поворотного
// стола. Модели повторяют коды возврата библиотек и вызывают обработчики
// кадров из собственной горутины, как это делает драйвер устройства.
package sim

import (
	"sync"
	"time"

	"github.com/iwtcode/tomographyAdapter/protocol/codes"
)

// PanelConfig задает геометрию и темп модели детектора.
type PanelConfig struct {
	Sensors int
	Rows    int
	Cols    int
	// TimeScale ускоряет таймер кадров: период = timer_sync / TimeScale.
	TimeScale float64
	// Base - базовый уровень сигнала синтетического кадра.
	Base uint16
}

// DefaultPanelConfig - небольшая панель, пригодная для отладки без железа.
func DefaultPanelConfig() PanelConfig {
	return PanelConfig{Sensors: 1, Rows: 256, Cols: 256, TimeScale: 1, Base: 1000}
}

// Panel - модель плоскопанельного детектора.
type Panel struct {
	cfg PanelConfig

	mu          sync.Mutex
	handle      int
	callbacks   bool
	onFrame     func([]uint16)
	onSequence  func()
	binning     uint32
	trigger     int
	gain        int
	cameraMode  int
	syncMode    int
	timer       time.Duration
	acquiring   bool
	stop        chan struct{}
	actFrame    int
	frameCount  int
	closed      bool
	preloaded   bool
	acquisition sync.WaitGroup
}

// NewPanel создает модель детектора.
func NewPanel(cfg PanelConfig) *Panel {
	if cfg.Sensors == 0 {
		cfg.Sensors = 1
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	return &Panel{cfg: cfg, binning: 0x101, timer: time.Second, syncMode: codes.SyncInternalTimer}
}

// EnumSensors возвращает число найденных сенсоров.
func (p *Panel) EnumSensors() (uint32, int) {
	if p.cfg.Sensors < 0 {
		return codes.DetNoCamera, 0
	}
	return codes.DetOK, p.cfg.Sensors
}

// NextSensor открывает первый сенсор и возвращает его позицию и хендл.
func (p *Panel) NextSensor() (uint32, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle = 1
	return codes.DetOK, 0, p.handle
}

// Configuration возвращает frames, rows, cols, sort flags, irq, sync mode.
func (p *Panel) Configuration() (uint32, []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return codes.DetInvalidHandle, nil
	}
	return codes.DetOK, []int{1, p.cfg.Rows, p.cfg.Cols, 0, 1, p.syncMode}
}

// SetCallbacks регистрирует обработчики конца кадра и конца последовательности.
func (p *Panel) SetCallbacks(onFrame func([]uint16), onSequence func()) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return codes.DetInvalidHandle
	}
	p.onFrame, p.onSequence, p.callbacks = onFrame, onSequence, true
	return codes.DetOK
}

// DefineDestBuffers проверяет размер буфера назначения.
func (p *Panel) DefineDestBuffers(frames, rows, cols int) uint32 {
	if frames <= 0 || rows <= 0 || cols <= 0 || rows > p.cfg.Rows || cols > p.cfg.Cols {
		return codes.DetInvalidParam
	}
	return codes.DetOK
}

// SetBinningMode принимает маску режима биннинга.
func (p *Panel) SetBinningMode(mode uint32) uint32 {
	if mode&0x1f == 0 || mode&0x300 == 0 || mode&0x300 == 0x300 {
		return codes.DetInvalidParam
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquiring {
		return codes.DetAcqAlreadyRunning
	}
	p.binning = mode
	return codes.DetOK
}

// BinningMode возвращает текущий режим биннинга.
func (p *Panel) BinningMode() (uint32, uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return codes.DetOK, p.binning
}

func (p *Panel) SetTriggerMode(mode int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trigger = mode
	return codes.DetOK
}

func (p *Panel) TriggerMode() (uint32, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return codes.DetOK, p.trigger
}

func (p *Panel) SetGain(gain int) uint32 {
	if gain < codes.GainP25 || gain > codes.Gain8P {
		return codes.DetInvalidParam
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gain = gain
	return codes.DetOK
}

func (p *Panel) SetCameraMode(mode int) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cameraMode = mode
	return codes.DetOK
}

func (p *Panel) SetFrameSyncMode(mode int) uint32 {
	if mode < codes.SyncSoftTrigger || mode > codes.SyncFreeRunning {
		return codes.DetInvalidParam
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.syncMode = mode
	return codes.DetOK
}

// SetTimerSync задает период кадра в микросекундах и возвращает принятое значение.
func (p *Panel) SetTimerSync(us int) (uint32, int) {
	if us <= 0 {
		return codes.DetInvalidParam, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timer = time.Duration(us) * time.Microsecond
	return codes.DetOK, us
}

// IsAcquiring сообщает, идет ли съемка.
func (p *Panel) IsAcquiring() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquiring
}

// ActFrame возвращает номер текущего кадра и длину последовательности.
func (p *Panel) ActFrame() (uint32, int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return codes.DetOK, p.actFrame, p.frameCount
}

// Acquire запускает последовательность из frames кадров. Кадры и конец
// последовательности сообщаются через обработчики из отдельной горутины.
// rows и cols - размеры кадра в текущем режиме биннинга.
func (p *Panel) Acquire(frames, rows, cols int, preloaded bool) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.handle == 0 || p.closed:
		return codes.DetInvalidHandle
	case !p.callbacks:
		return codes.DetNotInitialized
	case p.acquiring:
		return codes.DetAcqAlreadyRunning
	case frames <= 0 || rows*cols <= 0:
		return codes.DetInvalidParam
	}

	p.acquiring = true
	p.actFrame, p.frameCount = 0, frames
	p.stop = make(chan struct{})
	period := time.Duration(float64(p.timer) / p.cfg.TimeScale)
	if period < time.Microsecond {
		period = time.Microsecond
	}
	onFrame, onSequence, stop := p.onFrame, p.onSequence, p.stop
	base := p.cfg.Base
	p.preloaded = preloaded

	p.acquisition.Add(1)
	go func() {
		defer p.acquisition.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for i := 0; i < frames; i++ {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			p.mu.Lock()
			p.actFrame = i + 1
			p.mu.Unlock()
			onFrame(synthFrame(rows, cols, base, i))
		}
		p.mu.Lock()
		select {
		case <-stop:
			p.mu.Unlock()
			return
		default:
		}
		p.acquiring = false
		p.mu.Unlock()
		onSequence()
	}()
	return codes.DetOK
}

// Preloaded сообщает, была ли последняя съемка запущена с предзагруженными коррекциями.
func (p *Panel) Preloaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preloaded
}

// Abort останавливает съемку без вызова обработчика конца последовательности.
// Кадр, уже переданный обработчику, может прийти после возврата.
func (p *Panel) Abort() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquiring {
		close(p.stop)
		p.acquiring = false
	}
	return codes.DetOK
}

// Close прерывает съемку, дожидается горутины кадров и освобождает сенсор.
func (p *Panel) Close() uint32 {
	p.Abort()
	p.acquisition.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.handle = 0
	return codes.DetOK
}

// synthFrame - градиент по строкам со сдвигом на номер кадра.
func synthFrame(rows, cols int, base uint16, index int) []uint16 {
	out := make([]uint16, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = base + uint16((r+c+index)%64)
		}
	}
	return out
}
