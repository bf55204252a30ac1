// Package table - рабочий процесс контроллера поворотного стола.
package table

import (
	"context"
	"sync"
	"time"

	"github.com/iwtcode/tomographyAdapter/protocol/codes"
	"github.com/iwtcode/tomographyAdapter/worker"
	"github.com/sirupsen/logrus"
)

// Stage - драйвер контроллера стола. Коды возврата: 1 - успех, 0 - ошибка.
type Stage interface {
	Connect() (uint32, int)
	Disconnect() uint32
	Reset() uint32
	Abort() uint32
	Enable() uint32
	Disable() uint32
	FreeRun(speed float64) uint32
	FreeRunStop() uint32
	Home() uint32
	AcknowledgeAll() uint32
	Move(distance, speed float64, absolute bool) uint32
	WaitMode(mode int) uint32
	StatusItem(item int) (uint32, float64)
	AxisStatus() (uint32, int64)
	PositionFeedback() (uint32, float64)
}

// FeedbackInterval - период опроса положения и состояния оси.
const FeedbackInterval = 100 * time.Millisecond

// Worker связывает драйвер стола с командным циклом.
type Worker struct {
	rt     *worker.Runtime
	stage  Stage
	logger *logrus.Entry

	// Interval переопределяет FeedbackInterval; ноль отключает опрос.
	Interval time.Duration
}

// New регистрирует таблицу диспетчеризации стола в rt.
func New(rt *worker.Runtime, stage Stage) *Worker {
	w := &Worker{rt: rt, stage: stage, logger: rt.Logger(), Interval: FeedbackInterval}
	rt.Register(w.calls()...)
	return w
}

// Init подключает контроллер и включает ось.
func (w *Worker) Init() error {
	w.logger.Info("Initializing table...")
	res, err := w.rt.Require(codes.TblConnect)
	if err != nil {
		return err
	}
	w.logger.Infof("Detected %v tables. Using only the first one...", res[0])
	if _, err := w.rt.Require(codes.TblEnable); err != nil {
		return err
	}
	w.logger.Info("Table ready for commands.")
	return nil
}

// Run инициализирует стол, запускает опрос обратной связи и обслуживает
// команды до отмены ctx или закрытия соединения.
func (w *Worker) Run(ctx context.Context) error {
	defer func() {
		_ = w.rt.Close()
		w.stage.Disconnect()
	}()
	if err := w.Init(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if w.Interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.feedback(ctx, w.Interval)
		}()
	}
	err := w.rt.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

func (w *Worker) calls() []worker.Call {
	return []worker.Call{
		{Code: codes.TblConnect, Fn: w.connect},
		{Code: codes.TblDisconnect, Fn: plain(w.stage.Disconnect)},
		{Code: codes.TblReset, Fn: plain(w.stage.Reset)},
		{Code: codes.TblAbort, Fn: plain(w.stage.Abort)},
		{Code: codes.TblEnable, Fn: plain(w.stage.Enable)},
		{Code: codes.TblDisable, Fn: plain(w.stage.Disable)},
		{Code: codes.TblFreeRun, Fn: w.freeRun},
		{Code: codes.TblFreeRunStop, Fn: plain(w.stage.FreeRunStop)},
		{Code: codes.TblHome, Fn: plain(w.stage.Home)},
		{Code: codes.TblAcknowledgeAll, Fn: plain(w.stage.AcknowledgeAll)},
		{Code: codes.TblMove, Fn: w.move},
		{Code: codes.TblWaitMode, Fn: w.waitMode},
		{Code: codes.TblGetStatusItem, Fn: w.statusItem},
		{Code: codes.TblGetAxisStatus, Fn: w.axisStatus},
		{Code: codes.TblGetProgramPositionFeedback, Fn: w.positionFeedback},
	}
}

func plain(fn func() uint32) worker.Func {
	return func([]any) (uint32, []any) { return fn(), nil }
}

func (w *Worker) badArgs(err error) (uint32, []any) {
	w.logger.Warnf("Bad arguments: %v", err)
	return codes.TblError, nil
}

func (w *Worker) connect([]any) (uint32, []any) {
	rc, count := w.stage.Connect()
	if rc == codes.TblOK && count == 0 {
		rc = codes.TblError
	}
	return rc, []any{int64(count)}
}

func (w *Worker) freeRun(args []any) (uint32, []any) {
	speed, err := worker.FloatArg(args, 0)
	if err != nil {
		return w.badArgs(err)
	}
	return w.stage.FreeRun(speed), nil
}

// move принимает (distance, speed[, absolute]).
func (w *Worker) move(args []any) (uint32, []any) {
	distance, err := worker.FloatArg(args, 0)
	if err != nil {
		return w.badArgs(err)
	}
	speed, err := worker.FloatArg(args, 1)
	if err != nil {
		return w.badArgs(err)
	}
	absolute, err := worker.BoolArg(args, 2, false)
	if err != nil {
		return w.badArgs(err)
	}
	return w.stage.Move(distance, speed, absolute), nil
}

func (w *Worker) waitMode(args []any) (uint32, []any) {
	mode, err := worker.IntArg(args, 0)
	if err != nil {
		return w.badArgs(err)
	}
	return w.stage.WaitMode(int(mode)), nil
}

func (w *Worker) statusItem(args []any) (uint32, []any) {
	item, err := worker.IntArg(args, 0)
	if err != nil {
		return w.badArgs(err)
	}
	rc, v := w.stage.StatusItem(int(item))
	return rc, []any{v}
}

func (w *Worker) axisStatus([]any) (uint32, []any) {
	rc, v := w.stage.AxisStatus()
	return rc, []any{v}
}

func (w *Worker) positionFeedback([]any) (uint32, []any) {
	rc, v := w.stage.PositionFeedback()
	return rc, []any{v}
}
