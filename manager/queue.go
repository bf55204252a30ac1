package manager

import (
	"sync"

	"github.com/iwtcode/tomographyAdapter/models"
)

// Queue - FIFO исходящих команд одного устройства. Безопасна для
// одновременного использования; Push будит обработчик соединения.
type Queue struct {
	mu    sync.Mutex
	items []models.Command
	wake  func()
}

// NewQueue создает пустую очередь.
func NewQueue() *Queue { return &Queue{} }

// Push добавляет команду в конец очереди.
func (q *Queue) Push(cmd models.Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	wake := q.wake
	q.mu.Unlock()
	if wake != nil {
		wake()
	}
}

// Pop извлекает первую команду, не блокируясь.
func (q *Queue) Pop() (models.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.Command{}, false
	}
	cmd := q.items[0]
	q.items[0] = models.Command{}
	q.items = q.items[1:]
	return cmd, true
}

// Pending сообщает, есть ли команды в очереди.
func (q *Queue) Pending() bool { return q.Len() > 0 }

// Len возвращает число ожидающих команд.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// SetWaker задает функцию пробуждения обработчика; nil отключает ее.
func (q *Queue) SetWaker(wake func()) {
	q.mu.Lock()
	q.wake = wake
	q.mu.Unlock()
}
