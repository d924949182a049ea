package job_test

import (
	"errors"
	"testing"

	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/job"
	"github.com/krustylabs/krusty-host/kerrors"
)

func ownedWord(letter byte, value string) gcode.OwnedCommand {
	return gcode.Command{Kind: gcode.KindWord, Letter: letter, Value: value}.ToOwned()
}

func TestLifecycleHappyPath(t *testing.T) {
	m := job.NewManager(nil)
	id := m.Enqueue([]gcode.OwnedCommand{ownedWord('G', "28")})
	if id != 1 {
		t.Fatalf("first job id = %d, want 1", id)
	}
	if _, err := m.StartNext(); err != nil {
		t.Fatalf("start_next: %v", err)
	}
	cmd, ok, err := m.NextCommand()
	if err != nil || !ok {
		t.Fatalf("next_command: ok=%v err=%v", ok, err)
	}
	if cmd.Letter != 'G' {
		t.Errorf("got letter %c, want G", cmd.Letter)
	}
	h, ok := m.Head()
	if !ok || h.State() != job.Completed {
		t.Errorf("expected head job Completed after last command, got %v", h.State())
	}
}

// Universal property 7: any transition outside the state graph returns
// InvalidTransition and does not mutate state.
func TestInvalidTransitionRejected(t *testing.T) {
	m := job.NewManager(nil)
	m.Enqueue([]gcode.OwnedCommand{ownedWord('G', "28")})
	if _, err := m.Pause(); !kerrorsIsInvalidTransition(err) {
		t.Fatalf("pause on Queued job: got %v, want InvalidTransition", err)
	}
	h, _ := m.Head()
	if h.State() != job.Queued {
		t.Errorf("state mutated despite rejected transition: %v", h.State())
	}
}

func kerrorsIsInvalidTransition(err error) bool {
	return kerrors.IsInvalidTransition(err)
}

func TestNoJobOnEmptyQueue(t *testing.T) {
	m := job.NewManager(nil)
	if _, err := m.StartNext(); !kerrors.IsNoJob(err) {
		t.Fatalf("got %v, want NoJob", err)
	}
}

func TestPauseResumeCancel(t *testing.T) {
	m := job.NewManager(nil)
	m.Enqueue([]gcode.OwnedCommand{ownedWord('G', "1"), ownedWord('G', "2")})
	if _, err := m.StartNext(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Pause(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resume(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Cancel(); err != nil {
		t.Fatal(err)
	}
	h, _ := m.Head()
	if h.State() != job.Cancelled {
		t.Errorf("state = %v, want Cancelled", h.State())
	}
	if _, err := m.Pause(); !kerrors.IsInvalidTransition(err) {
		t.Errorf("pause on Cancelled job: got %v, want InvalidTransition", err)
	}
}

func TestProcessCurrentChannelSendError(t *testing.T) {
	sendErr := errors.New("pipeline closed")
	m := job.NewManager(func(gcode.OwnedCommand) error { return sendErr })
	m.Enqueue([]gcode.OwnedCommand{ownedWord('G', "28")})
	if _, err := m.StartNext(); err != nil {
		t.Fatal(err)
	}
	err := m.ProcessCurrent()
	var je *kerrors.JobError
	if !errors.As(err, &je) || je.Kind != kerrors.ChannelSend {
		t.Fatalf("got %v, want ChannelSend", err)
	}
}

func TestEnqueueFromStreamRetainsErrorAsSentinel(t *testing.T) {
	m := job.NewManager(nil)
	items := []job.StreamItem{
		{Command: ownedWord('G', "1")},
		{Err: errors.New("bad token")},
		{Command: ownedWord('G', "2")},
	}
	m.EnqueueFromStream(items)
	m.StartNext()

	cmd1, _, _ := m.NextCommand()
	if cmd1.Kind != gcode.KindWord {
		t.Errorf("command 1 kind = %v, want Word", cmd1.Kind)
	}
	cmd2, _, _ := m.NextCommand()
	if cmd2.Kind != gcode.KindComment {
		t.Errorf("command 2 kind = %v, want Comment sentinel", cmd2.Kind)
	}
	cmd3, _, _ := m.NextCommand()
	if cmd3.Kind != gcode.KindWord || cmd3.Value != "2" {
		t.Errorf("command 3 = %+v, want Word(G,2)", cmd3)
	}
}

func TestSerialAcrossJobs(t *testing.T) {
	m := job.NewManager(nil)
	m.Enqueue([]gcode.OwnedCommand{ownedWord('G', "1")})
	m.Enqueue([]gcode.OwnedCommand{ownedWord('G', "2")})

	m.StartNext()
	m.NextCommand() // drains and completes job 1

	id, err := m.StartNext()
	if err != nil {
		t.Fatalf("start_next for second job: %v", err)
	}
	if id != 2 {
		t.Errorf("second job id = %d, want 2", id)
	}
}
