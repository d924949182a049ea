// Package job implements the print-job manager: a FIFO of jobs whose
// lifecycle follows the Queued/Running/Paused/terminal state graph,
// draining each head job's command queue into the motion pipeline
// through a bounded channel.
package job

import (
	"sync"

	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/kerrors"
)

// State is a job's lifecycle position.
type State int

const (
	Queued State = iota
	Running
	Paused
	Completed
	Cancelled
	Error
)

func (s State) String() string {
	switch s {
	case Queued:
		return "Queued"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

func (s State) terminal() bool {
	return s == Completed || s == Cancelled || s == Error
}

// Job is one queued print job: a monotonic id, its lifecycle state, a
// FIFO of owned commands, and fractional progress.
type Job struct {
	ID       uint64
	state    State
	commands []gcode.OwnedCommand
	total    int
	errMsg   string
}

// State returns the job's current lifecycle state.
func (j *Job) State() State { return j.state }

// Progress returns completed/total in [0,1]; a job with no commands
// reports 1.0 once it leaves Queued.
func (j *Job) Progress() float64 {
	if j.total == 0 {
		if j.state == Queued {
			return 0
		}
		return 1
	}
	return float64(j.total-len(j.commands)) / float64(j.total)
}

// Manager serializes access to the job FIFO with a single mutex, as
// the comm package's connection pool serializes dial attempts.
type Manager struct {
	mu     sync.Mutex
	jobs   []*Job
	nextID uint64
	sender func(gcode.OwnedCommand) error
}

// NewManager returns an empty manager. sender delivers one command at
// a time to the motion pipeline; a nil sender is valid for managers
// used only to stage jobs without draining them (e.g. in tests).
func NewManager(sender func(gcode.OwnedCommand) error) *Manager {
	return &Manager{nextID: 1, sender: sender}
}

// Enqueue appends a new Queued job holding commands and returns its id.
func (m *Manager) Enqueue(commands []gcode.OwnedCommand) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	cp := make([]gcode.OwnedCommand, len(commands))
	copy(cp, commands)
	m.jobs = append(m.jobs, &Job{ID: id, state: Queued, commands: cp, total: len(cp)})
	return id
}

// StreamItem is one item produced by a lazy command stream: either a
// parsed command or an error. A stream error is retained as a
// Comment-shaped sentinel so its position in the sequence survives.
type StreamItem struct {
	Command gcode.OwnedCommand
	Err     error
}

// EnqueueFromStream drains a lazy sequence of StreamItems into a new
// job, converting any error item into a Comment-kind sentinel command
// so ordering is preserved without losing the failure.
func (m *Manager) EnqueueFromStream(items []StreamItem) uint64 {
	commands := make([]gcode.OwnedCommand, 0, len(items))
	for _, it := range items {
		if it.Err != nil {
			sentinel := gcode.Command{Kind: gcode.KindComment, Text: "stream error: " + it.Err.Error()}
			commands = append(commands, sentinel.ToOwned())
			continue
		}
		commands = append(commands, it.Command)
	}
	return m.Enqueue(commands)
}

// head returns the current head job, discarding any terminal jobs
// that have already finished draining so the next Queued job in the
// FIFO becomes visible, or a NoJob error if none remain.
func (m *Manager) head(op string) (*Job, error) {
	for len(m.jobs) > 0 && m.jobs[0].state.terminal() && len(m.jobs[0].commands) == 0 {
		m.jobs = m.jobs[1:]
	}
	if len(m.jobs) == 0 {
		return nil, &kerrors.JobError{Kind: kerrors.NoJob, Op: op}
	}
	return m.jobs[0], nil
}

// StartNext transitions the head job Queued -> Running.
func (m *Manager) StartNext() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.head("start_next")
	if err != nil {
		return 0, err
	}
	if j.state != Queued {
		return 0, &kerrors.JobError{Kind: kerrors.InvalidTransition, Op: "start_next"}
	}
	j.state = Running
	return j.ID, nil
}

// Pause transitions the head job Running -> Paused.
func (m *Manager) Pause() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.head("pause")
	if err != nil {
		return 0, err
	}
	if j.state != Running {
		return 0, &kerrors.JobError{Kind: kerrors.InvalidTransition, Op: "pause"}
	}
	j.state = Paused
	return j.ID, nil
}

// Resume transitions the head job Paused -> Running.
func (m *Manager) Resume() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.head("resume")
	if err != nil {
		return 0, err
	}
	if j.state != Paused {
		return 0, &kerrors.JobError{Kind: kerrors.InvalidTransition, Op: "resume"}
	}
	j.state = Running
	return j.ID, nil
}

// Cancel transitions the head job {Queued,Running,Paused} -> Cancelled.
func (m *Manager) Cancel() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.head("cancel")
	if err != nil {
		return 0, err
	}
	if j.state.terminal() {
		return 0, &kerrors.JobError{Kind: kerrors.InvalidTransition, Op: "cancel"}
	}
	j.state = Cancelled
	return j.ID, nil
}

// NextCommand pops and returns one command from the head Running job.
// When the FIFO empties, the job transitions to Completed and the
// final pop still returns that last command.
func (m *Manager) NextCommand() (gcode.OwnedCommand, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, err := m.head("next_command")
	if err != nil {
		return gcode.OwnedCommand{}, false, err
	}
	if j.state != Running {
		return gcode.OwnedCommand{}, false, &kerrors.JobError{Kind: kerrors.InvalidTransition, Op: "next_command"}
	}
	if len(j.commands) == 0 {
		j.state = Completed
		return gcode.OwnedCommand{}, false, nil
	}
	cmd := j.commands[0]
	j.commands = j.commands[1:]
	if len(j.commands) == 0 {
		j.state = Completed
	}
	return cmd, true, nil
}

// ProcessCurrent drains the head Running job into the motion pipeline
// via the manager's bounded sender, one command at a time, marking the
// job Completed on success or Error on a send failure.
func (m *Manager) ProcessCurrent() error {
	for {
		cmd, ok, err := m.NextCommand()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if m.sender == nil {
			continue
		}
		if err := m.sender(cmd); err != nil {
			m.markError("process_current")
			return &kerrors.JobError{Kind: kerrors.ChannelSend, Op: "process_current"}
		}
	}
}

func (m *Manager) markError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return
	}
	j := m.jobs[0]
	j.state = Error
	j.errMsg = msg
}

// Head returns the current head job and true, or (nil, false) if the
// queue is empty. The returned Job is a read-only snapshot view.
func (m *Manager) Head() (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return nil, false
	}
	return m.jobs[0], true
}

// Len returns the number of jobs currently queued (including the head).
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}
