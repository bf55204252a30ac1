package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iwtcode/tomographyAdapter/internal/interfaces"
	"github.com/iwtcode/tomographyAdapter/internal/metrics"
	"github.com/iwtcode/tomographyAdapter/internal/middleware/logging"
	"github.com/iwtcode/tomographyAdapter/models"
)

const (
	sinkBuffer     = 256
	publishTimeout = 2 * time.Second
)

type sinkWorker struct {
	sink    interfaces.EventSink
	queue   chan models.Event
	dropped atomic.Uint64
}

// Dispatcher читает поток событий менеджера и раздает его приемникам. У каждого
// приемника своя очередь: медленный приемник теряет события, но не задерживает
// остальных.
type Dispatcher struct {
	manager interfaces.DeviceManager
	metrics *metrics.Metrics
	logger  *logging.Logger
	workers []*sinkWorker
	wg      sync.WaitGroup
}

// NewDispatcher создает раздатчик. metrics может быть nil.
func NewDispatcher(manager interfaces.DeviceManager, m *metrics.Metrics, logger *logging.Logger, sinks ...interfaces.EventSink) *Dispatcher {
	d := &Dispatcher{manager: manager, metrics: m, logger: logger.WithPrefix("EVENTS")}
	for _, s := range sinks {
		d.workers = append(d.workers, &sinkWorker{sink: s, queue: make(chan models.Event, sinkBuffer)})
	}
	return d
}

// Start запускает раздачу. Она завершается, когда менеджер закрывает поток.
func (d *Dispatcher) Start() {
	for _, w := range d.workers {
		d.wg.Add(1)
		go d.runSink(w)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.manager.Events() {
			d.handle(ev)
		}
		for _, w := range d.workers {
			close(w.queue)
		}
		d.logger.Info("Event stream closed")
	}()
}

func (d *Dispatcher) handle(ev models.Event) {
	if ev.Type == models.EventDiagnostic {
		d.logger.Warn(ev.Line())
	} else {
		d.logger.Debug(ev.Line())
	}
	if d.metrics != nil {
		d.metrics.Observe(ev)
		d.metrics.Refresh(d.manager.Devices())
	}
	for _, w := range d.workers {
		select {
		case w.queue <- ev:
		default:
			if n := w.dropped.Add(1); n == 1 || n%100 == 0 {
				d.logger.Warn("Sink is falling behind, dropping events", "sink", w.sink.Name(), "dropped", n)
			}
		}
	}
}

func (d *Dispatcher) runSink(w *sinkWorker) {
	defer d.wg.Done()
	for ev := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := w.sink.Publish(ctx, ev); err != nil {
			d.logger.Error("Failed to publish event", "sink", w.sink.Name(), "device", ev.Device, "error", err)
		}
		cancel()
	}
}

// Dropped возвращает число потерянных событий по приемникам.
func (d *Dispatcher) Dropped() map[string]uint64 {
	out := make(map[string]uint64, len(d.workers))
	for _, w := range d.workers {
		out[w.sink.Name()] = w.dropped.Load()
	}
	return out
}

// Wait ждет завершения раздачи и отправки очередей.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
