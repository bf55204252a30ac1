package manager

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/iwtcode/tomographyAdapter/models"
)

// Переменные окружения, через которые рабочий процесс узнает менеджера.
const (
	EnvWorkerAddr = "TOMO_WORKER_ADDR"
	EnvWorkerKind = "TOMO_WORKER_KIND"
)

// SpawnRequest описывает рабочий процесс одного устройства.
type SpawnRequest struct {
	Name string
	Kind models.DeviceKind
	// Addr - адрес, на котором менеджер принимает соединения.
	Addr string
}

// Process - запущенный рабочий процесс.
type Process interface {
	PID() int
	// Done закрывается после завершения процесса.
	Done() <-chan struct{}
	// Err возвращает итог завершения; до Done - nil.
	Err() error
	// Terminate посылает SIGTERM, ждет grace и затем убивает процесс.
	// Повторный вызов безопасен.
	Terminate(grace time.Duration) error
}

// Spawner запускает рабочие процессы устройств.
type Spawner interface {
	Spawn(req SpawnRequest) (Process, error)
}

// ExecSpawner запускает `<Command...> worker <name>` и дописывает вывод
// в <LogsDir>/<name>.log.
type ExecSpawner struct {
	Command []string
	LogsDir string
	// Env добавляется к окружению менеджера.
	Env []string
}

// Spawn запускает процесс устройства.
func (s *ExecSpawner) Spawn(req SpawnRequest) (Process, error) {
	if len(s.Command) == 0 {
		return nil, errors.New("worker command is empty")
	}
	logsDir := s.LogsDir
	if logsDir == "" {
		logsDir = "logs"
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(logsDir, req.Name+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open worker log: %w", err)
	}

	args := append(append([]string{}, s.Command[1:]...), "worker", req.Name)
	cmd := exec.Command(s.Command[0], args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Env = append(cmd.Env, EnvWorkerAddr+"="+req.Addr, EnvWorkerKind+"="+req.Kind.String())

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start worker %s: %w", req.Name, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		logFile.Close()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	once    sync.Once
	termErr error
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *execProcess) Terminate(grace time.Duration) error {
	p.once.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			// SIGTERM недоступен, сразу Kill
			grace = 0
		}
		select {
		case <-p.done:
			return
		case <-time.After(grace):
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.termErr = fmt.Errorf("kill pid %d: %w", p.PID(), err)
			return
		}
		<-p.done
	})
	return p.termErr
}
