// Package detector - рабочий процесс плоскопанельного детектора: стартовая
// инициализация сенсора, накопление последовательностей и коррекции.
package detector

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwtcode/tomographyAdapter/acquisition"
	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/iwtcode/tomographyAdapter/worker"
	"github.com/sirupsen/logrus"
)

// Panel - драйвер детектора. Обработчики SetCallbacks вызываются из
// горутины драйвера.
type Panel interface {
	EnumSensors() (uint32, int)
	NextSensor() (rc uint32, pos int, handle int)
	Configuration() (uint32, []int)
	SetCallbacks(onFrame func([]uint16), onSequence func()) uint32
	DefineDestBuffers(frames, rows, cols int) uint32
	SetBinningMode(mode uint32) uint32
	BinningMode() (uint32, uint32)
	SetTriggerMode(mode int) uint32
	TriggerMode() (uint32, int)
	SetGain(gain int) uint32
	SetCameraMode(mode int) uint32
	SetFrameSyncMode(mode int) uint32
	SetTimerSync(us int) (uint32, int)
	IsAcquiring() bool
	ActFrame() (uint32, int, int)
	Acquire(frames, rows, cols int, preloaded bool) uint32
	Abort() uint32
	Close() uint32
}

// Параметры, которые детектор получает при старте.
const (
	defaultCameraMode = 0
	defaultTimerSync  = 1_000_000
)

// Worker связывает драйвер детектора с командным циклом.
type Worker struct {
	rt      *worker.Runtime
	panel   Panel
	machine *acquisition.Machine
	logger  *logrus.Entry

	rows, cols int
}

// New регистрирует таблицу диспетчеризации детектора в rt.
func New(rt *worker.Runtime, panel Panel) *Worker {
	w := &Worker{rt: rt, panel: panel, logger: rt.Logger()}
	rt.Register(w.calls()...)
	return w
}

// Machine возвращает автомат съемки. До Init равен nil.
func (w *Worker) Machine() *acquisition.Machine { return w.machine }

// Init выполняет стартовую последовательность. Провал обязательного вызова
// возвращает ошибку, обернутую в worker.ErrFatal.
func (w *Worker) Init() error {
	w.logger.Info("Initializing detector...")
	res, err := w.rt.Require(codes.DetEnumSensors)
	if err != nil {
		return err
	}
	w.logger.Infof("Detected %v sensors. Using only the first one...", res[0])

	if _, err := w.rt.Require(codes.DetGetNextSensor); err != nil {
		return err
	}
	if _, err := w.rt.Require(codes.DetGetConfiguration); err != nil {
		return err
	}
	w.logger.Infof("Sensor geometry %dx%d", w.rows, w.cols)

	if _, err := w.rt.Require(codes.DetSetCallbacksAndMessages); err != nil {
		return err
	}

	defaults := []struct {
		code uint32
		args []any
	}{
		{codes.DetDefineDestBuffers, []any{int64(1), int64(w.rows), int64(w.cols)}},
		{codes.DetSetCameraBinningMode, []any{int64(acquisition.DefaultBinning)}},
		{codes.DetSetCameraTriggerMode, []any{int64(codes.TriggerFrames)}},
		{codes.DetSetCameraGain, []any{int64(codes.GainP25)}},
		{codes.DetSetCameraMode, []any{int64(defaultCameraMode)}},
		{codes.DetSetFrameSyncMode, []any{int64(codes.SyncInternalTimer)}},
		{codes.DetSetTimerSync, []any{int64(defaultTimerSync)}},
	}
	for _, d := range defaults {
		if _, err := w.rt.Invoke(d.code, d.args...); err != nil {
			return err
		}
	}
	w.logger.Info("Detector ready for commands.")
	return nil
}

// Run инициализирует детектор и обслуживает команды до отмены ctx или
// закрытия соединения.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		_ = w.rt.Close()
		w.logger.Info("Closing detector connection...")
		w.panel.Close()
	}()
	if err := w.Init(); err != nil {
		return err
	}
	return w.rt.Run(ctx)
}

func (w *Worker) calls() []worker.Call {
	return []worker.Call{
		{Code: codes.DetEnumSensors, Fn: w.enumSensors},
		{Code: codes.DetGetNextSensor, Fn: w.nextSensor},
		{Code: codes.DetGetConfiguration, Fn: w.configuration},
		{Code: codes.DetSetCallbacksAndMessages, Fn: w.setCallbacks},
		{Code: codes.DetDefineDestBuffers, Fn: w.defineDestBuffers},
		{Code: codes.DetAcquireImage, Fn: w.acquireImage},
		{Code: codes.DetAbort, Fn: w.abort},
		{Code: codes.DetSetCameraBinningMode, Fn: w.setBinningMode},
		{Code: codes.DetGetCameraBinningMode, Fn: w.binningMode},
		{Code: codes.DetSetCorrImage, Fn: w.setCorrImage},
		{Code: codes.DetSetCameraTriggerMode, Fn: intSetter(w.panel.SetTriggerMode)},
		{Code: codes.DetGetCameraTriggerMode, Fn: w.triggerMode},
		{Code: codes.DetSetCameraGain, Fn: intSetter(w.panel.SetGain)},
		{Code: codes.DetSetCameraMode, Fn: intSetter(w.panel.SetCameraMode)},
		{Code: codes.DetSetFrameSyncMode, Fn: intSetter(w.panel.SetFrameSyncMode)},
		{Code: codes.DetSetTimerSync, Fn: w.setTimerSync},
		{Code: codes.DetIsAcquiringData, Fn: w.isAcquiring},
		{Code: codes.DetGetActFrame, Fn: w.actFrame},
		{Code: codes.DetInit, Fn: w.init},
		{Code: codes.DetClose, Fn: w.close},
	}
}

func badArgs(err error) (uint32, []any) {
	return codes.DetInvalidParam, []any{err.Error()}
}

func intSetter(set func(int) uint32) worker.Func {
	return func(args []any) (uint32, []any) {
		v, err := worker.IntArg(args, 0)
		if err != nil {
			return badArgs(err)
		}
		return set(int(v)), nil
	}
}

func (w *Worker) enumSensors([]any) (uint32, []any) {
	rc, n := w.panel.EnumSensors()
	if rc == codes.DetOK && n == 0 {
		rc = codes.DetNoCamera
	}
	return rc, []any{int64(n)}
}

func (w *Worker) nextSensor([]any) (uint32, []any) {
	rc, pos, handle := w.panel.NextSensor()
	return rc, []any{int64(pos), int64(handle)}
}

func (w *Worker) configuration([]any) (uint32, []any) {
	rc, cfg := w.panel.Configuration()
	if rc != codes.DetOK {
		return rc, nil
	}
	if len(cfg) < 3 || cfg[1] <= 0 || cfg[2] <= 0 {
		return codes.DetInvalidParam, nil
	}
	if w.machine == nil {
		w.rows, w.cols = cfg[1], cfg[2]
		w.machine = acquisition.NewMachine(w.rows, w.cols)
	}
	out := make([]any, len(cfg))
	for i, v := range cfg {
		out[i] = int64(v)
	}
	return rc, out
}

func (w *Worker) setCallbacks([]any) (uint32, []any) {
	if w.machine == nil {
		return codes.DetNotInitialized, nil
	}
	return w.panel.SetCallbacks(w.onFrame, w.onSequence), nil
}

func (w *Worker) defineDestBuffers(args []any) (uint32, []any) {
	frames, err := worker.IntArg(args, 0)
	if err != nil {
		return badArgs(err)
	}
	rows, cols := w.rows, w.cols
	if len(args) >= 3 {
		r, err1 := worker.IntArg(args, 1)
		c, err2 := worker.IntArg(args, 2)
		if err := errors.Join(err1, err2); err != nil {
			return badArgs(err)
		}
		rows, cols = int(r), int(c)
	}
	return w.panel.DefineDestBuffers(int(frames), rows, cols), nil
}

// acquireImage открывает последовательность и запускает съемку; при
// загруженных коррекциях - с предзагрузкой.
func (w *Worker) acquireImage(args []any) (uint32, []any) {
	if w.machine == nil {
		return codes.DetNotInitialized, nil
	}
	frames, err := worker.IntArg(args, 0)
	if err != nil {
		return badArgs(err)
	}
	if w.panel.IsAcquiring() {
		return codes.DetAcqAlreadyRunning, nil
	}
	if err := w.machine.StartSequence(int(frames)); err != nil {
		return acquisition.Status(err), nil
	}
	rows, cols := w.machine.Dims()
	rc := w.panel.Acquire(int(frames), rows, cols, w.machine.CorrectionsLoaded())
	if rc != codes.DetOK {
		w.machine.Abort()
	}
	return rc, nil
}

func (w *Worker) abort([]any) (uint32, []any) {
	rc := w.panel.Abort()
	if w.machine == nil {
		return rc, nil
	}
	if res, open := w.machine.Abort(); open {
		w.logger.Warnf("Sequence aborted after %d of %d frames", res.Frames, res.Total)
		w.rt.Emit(codes.DetEndAcqCallback, res.Status, res.Image)
	}
	return rc, nil
}

// setBinningMode меняет режим драйвера, затем размеры и коррекции автомата.
// Если автомат отказал, драйвер возвращается к прежнему режиму.
func (w *Worker) setBinningMode(args []any) (uint32, []any) {
	if w.machine == nil {
		return codes.DetNotInitialized, nil
	}
	v, err := worker.IntArg(args, 0)
	if err != nil {
		return badArgs(err)
	}
	mode := acquisition.BinningMode(v)
	_, prev := w.panel.BinningMode()
	if rc := w.panel.SetBinningMode(uint32(mode)); rc != codes.DetOK {
		return rc, nil
	}
	if err := w.machine.SetBinningMode(mode); err != nil {
		w.logger.Errorf("Binning %s rejected: %v", mode, err)
		w.panel.SetBinningMode(prev)
		if errors.Is(err, acquisition.ErrAlreadyRunning) {
			return codes.DetAcqAlreadyRunning, nil
		}
		return codes.DetAcq, nil
	}
	rows, cols := w.machine.Dims()
	w.logger.Infof("Binning %s, frame %dx%d", mode, rows, cols)
	return codes.DetOK, nil
}

func (w *Worker) binningMode([]any) (uint32, []any) {
	rc, mode := w.panel.BinningMode()
	return rc, []any{int64(mode)}
}

func (w *Worker) triggerMode([]any) (uint32, []any) {
	rc, mode := w.panel.TriggerMode()
	return rc, []any{int64(mode)}
}

func (w *Worker) setTimerSync(args []any) (uint32, []any) {
	us, err := worker.IntArg(args, 0)
	if err != nil {
		return badArgs(err)
	}
	rc, accepted := w.panel.SetTimerSync(int(us))
	return rc, []any{int64(accepted)}
}

// setCorrImage принимает (image, kind). Ноль вместо изображения снимает коррекцию.
func (w *Worker) setCorrImage(args []any) (uint32, []any) {
	if w.machine == nil {
		return codes.DetNotInitialized, nil
	}
	img, err := worker.ArrayArg(args, 0)
	if err != nil {
		return badArgs(err)
	}
	name, err := worker.StringArg(args, 1)
	if err != nil {
		return badArgs(err)
	}
	kind, err := acquisition.ParseCorrectionKind(name)
	if err != nil {
		return acquisition.Status(err), nil
	}
	values, err := worker.Float64s(img)
	if err != nil {
		return badArgs(err)
	}
	if img != nil && (img.Rows != w.rows || img.Cols != w.cols) {
		return badArgs(fmt.Errorf("%w: %dx%d, sensor is %dx%d", acquisition.ErrShape, img.Rows, img.Cols, w.rows, w.cols))
	}
	if err := w.machine.SetCorrection(kind, values); err != nil {
		return acquisition.Status(err), nil
	}
	if kind == acquisition.BadPixelMap {
		return codes.DetOK, []any{int64(w.machine.BadPixels())}
	}
	return codes.DetOK, nil
}

func (w *Worker) isAcquiring([]any) (uint32, []any) {
	return codes.DetOK, []any{w.panel.IsAcquiring()}
}

func (w *Worker) actFrame([]any) (uint32, []any) {
	rc, act, total := w.panel.ActFrame()
	return rc, []any{int64(act), int64(total)}
}

// init подтверждает готовность уже инициализированного детектора.
func (w *Worker) init([]any) (uint32, []any) {
	if w.machine == nil {
		return codes.DetNotInitialized, nil
	}
	return codes.DetOK, nil
}

func (w *Worker) close([]any) (uint32, []any) {
	return w.panel.Close(), nil
}

// onFrame вызывается драйвером по окончании кадра.
func (w *Worker) onFrame(raw []uint16) {
	frame, ok, err := w.machine.OnFrameEnd(raw)
	if err != nil {
		w.logger.Warnf("Frame dropped: %v", err)
		return
	}
	if !ok {
		return
	}
	w.logger.Debugf("End of frame %d of %d", frame.Number, frame.Total)
	w.rt.Emit(codes.DetEndFrameCallback, codes.DetOK, frame.Image)
}

// onSequence вызывается драйвером по окончании последовательности.
func (w *Worker) onSequence() {
	res, err := w.machine.OnSequenceEnd()
	if err != nil {
		w.logger.Warnf("End of sequence ignored: %v", err)
		return
	}
	w.logger.Infof("End of sequence of %d frames", res.Total)
	w.rt.Emit(codes.DetEndAcqCallback, res.Status, res.Image)
}
