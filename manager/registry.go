package manager

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/iwtcode/tomographyAdapter/models"
	apperrors "github.com/iwtcode/tomographyAdapter/pkg/errors"
)

// Record - запись живого соединения устройства. Существует с рукопожатия
// до закрытия соединения.
type Record struct {
	Name        string
	Kind        models.DeviceKind
	SessionID   string
	ConnectedAt time.Time
	Queue       *Queue

	images int
}

// nextImageName нумерует изображения устройства: <name>_0000, <name>_0001, ...
func (r *Record) nextImageName() string {
	name := fmt.Sprintf("%s_%04d", r.Name, r.images)
	r.images++
	return name
}

type entry struct {
	name   string
	kind   models.DeviceKind
	queue  *Queue
	record *Record
	pid    int
}

// Registry хранит сконфигурированные устройства, их очереди и живые записи.
// Имена сравниваются без учета регистра.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
}

// NewRegistry создает пустой реестр.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Add регистрирует ожидаемое устройство и сразу создает его очередь.
func (r *Registry) Add(name string, kind models.DeviceKind) error {
	k := key(name)
	if k == "" {
		return fmt.Errorf("empty device name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[k]; ok {
		return fmt.Errorf("device %q configured twice", name)
	}
	r.entries[k] = &entry{name: strings.TrimSpace(name), kind: kind, queue: NewQueue()}
	r.order = append(r.order, k)
	return nil
}

func (r *Registry) lookupLocked(name string) (*entry, error) {
	e, ok := r.entries[key(name)]
	if !ok {
		if s := r.suggestLocked(name); s != "" {
			return nil, fmt.Errorf("%w %q, did you mean %q?", apperrors.ErrUnknownDevice, name, s)
		}
		return nil, fmt.Errorf("%w %q", apperrors.ErrUnknownDevice, name)
	}
	return e, nil
}

// Resolve возвращает каноническое имя и тип устройства.
func (r *Registry) Resolve(name string) (string, models.DeviceKind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookupLocked(name)
	if err != nil {
		return "", 0, err
	}
	return e.name, e.kind, nil
}

// Queue возвращает очередь устройства.
func (r *Registry) Queue(name string) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	return e.queue, nil
}

// Attach создает живую запись для устройства после рукопожатия. Второе
// соединение с тем же именем отклоняется, пока первое живо.
func (r *Registry) Attach(name string, kind models.DeviceKind) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.lookupLocked(name)
	if err != nil {
		return nil, err
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%w: %q is a %s, not a %s", apperrors.ErrUnknownDevice, e.name, e.kind, kind)
	}
	if e.record != nil {
		return nil, fmt.Errorf("%w: %q (session %s)", apperrors.ErrNameInUse, e.name, e.record.SessionID)
	}
	e.record = &Record{
		Name:        e.name,
		Kind:        e.kind,
		SessionID:   uuid.New().String(),
		ConnectedAt: time.Now(),
		Queue:       e.queue,
	}
	return e.record, nil
}

// Detach удаляет запись, если она все еще текущая для устройства.
func (r *Registry) Detach(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key(rec.Name)]; ok && e.record == rec {
		e.record = nil
	}
}

// Online сообщает, есть ли у устройства живое соединение.
func (r *Registry) Online(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key(name)]
	return ok && e.record != nil
}

// Offline возвращает имена устройств без живого соединения.
func (r *Registry) Offline() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, k := range r.order {
		if e := r.entries[k]; e.record == nil {
			names = append(names, e.name)
		}
	}
	return names
}

// AllOnline сообщает, подключились ли все сконфигурированные устройства.
func (r *Registry) AllOnline() bool { return len(r.Offline()) == 0 }

// SetPID запоминает PID рабочего процесса устройства.
func (r *Registry) SetPID(name string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key(name)]; ok {
		e.pid = pid
	}
}

// Snapshot возвращает состояние устройств в порядке конфигурации.
func (r *Registry) Snapshot() []models.DeviceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.DeviceInfo, 0, len(r.order))
	for _, k := range r.order {
		e := r.entries[k]
		info := models.DeviceInfo{Name: e.name, Kind: e.kind, Pending: e.queue.Len(), PID: e.pid}
		if e.record != nil {
			info.Online = true
			info.SessionID = e.record.SessionID
			info.ConnectedAt = e.record.ConnectedAt
		}
		out = append(out, info)
	}
	return out
}

// suggestLocked подбирает ближайшее сконфигурированное имя не дальше трех правок.
func (r *Registry) suggestLocked(name string) string {
	best, bestDist := "", 4
	for _, k := range r.order {
		if d := levenshtein.ComputeDistance(key(name), k); d < bestDist {
			best, bestDist = r.entries[k].name, d
		}
	}
	return best
}
