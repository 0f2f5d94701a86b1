package scheduler

import (
	"context"
	"errors"
	"testing"
)

// =============================================================================
// Helpers
// =============================================================================

// fakeEngine records registrations and lets tests fire entries manually.
type fakeEngine struct {
	nextID  int
	entries map[int]func()
	specs   map[int]string
	started bool
	stopped bool
	addErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{entries: map[int]func(){}, specs: map[int]string{}}
}

func (e *fakeEngine) AddFunc(spec string, cmd func()) (int, error) {
	if e.addErr != nil {
		return 0, e.addErr
	}
	e.nextID++
	e.entries[e.nextID] = cmd
	e.specs[e.nextID] = spec
	return e.nextID, nil
}

func (e *fakeEngine) Remove(id int) { delete(e.entries, id) }
func (e *fakeEngine) Start()        { e.started = true }
func (e *fakeEngine) Stop()         { e.stopped = true }

// fire runs every registered entry once.
func (e *fakeEngine) fire() {
	for _, cmd := range e.entries {
		cmd()
	}
}

func sweepJob(id string, ran *int, err error) Job {
	return Job{
		ID:       id,
		Name:     "test sweep",
		CronExpr: "@hourly",
		Run: func(ctx context.Context) error {
			*ran++
			return err
		},
	}
}

// =============================================================================
// AddJob validation
// =============================================================================

func TestScheduler_AddJob_WhenEmptyID_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newFakeEngine())
	err := s.AddJob(Job{CronExpr: "@hourly", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrEmptyJobID) {
		t.Fatalf("expected ErrEmptyJobID, got %v", err)
	}
}

func TestScheduler_AddJob_WhenEmptyCron_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newFakeEngine())
	err := s.AddJob(Job{ID: "j1", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrEmptyCron) {
		t.Fatalf("expected ErrEmptyCron, got %v", err)
	}
}

func TestScheduler_AddJob_WhenNilTask_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newFakeEngine())
	err := s.AddJob(Job{ID: "j1", CronExpr: "@hourly"})
	if !errors.Is(err, ErrNilTask) {
		t.Fatalf("expected ErrNilTask, got %v", err)
	}
}

func TestScheduler_AddJob_WhenDuplicateID_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newFakeEngine())
	ran := 0
	if err := s.AddJob(sweepJob("j1", &ran, nil)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := s.AddJob(sweepJob("j1", &ran, nil))
	if !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestScheduler_AddJob_WhenEngineRejects_ShouldReturnError(t *testing.T) {
	engine := newFakeEngine()
	engine.addErr = errors.New("bad cron expression")
	s := NewScheduler(engine)
	ran := 0
	if err := s.AddJob(sweepJob("j1", &ran, nil)); err == nil {
		t.Fatal("expected engine error to propagate")
	}
}

// =============================================================================
// Firing and lifecycle
// =============================================================================

func TestScheduler_WhenJobFires_ShouldRunTask(t *testing.T) {
	engine := newFakeEngine()
	s := NewScheduler(engine)
	ran := 0
	if err := s.AddJob(sweepJob("j1", &ran, nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	engine.fire()
	engine.fire()

	if ran != 2 {
		t.Errorf("expected task to run twice, got %d", ran)
	}
}

func TestScheduler_WhenTaskFails_ShouldNotPanic(t *testing.T) {
	engine := newFakeEngine()
	s := NewScheduler(engine)
	ran := 0
	if err := s.AddJob(sweepJob("j1", &ran, errors.New("sweep failed"))); err != nil {
		t.Fatalf("add: %v", err)
	}
	engine.fire()
	if ran != 1 {
		t.Errorf("expected task to run once, got %d", ran)
	}
}

func TestScheduler_RemoveJob_ShouldUnregisterEntry(t *testing.T) {
	engine := newFakeEngine()
	s := NewScheduler(engine)
	ran := 0
	if err := s.AddJob(sweepJob("j1", &ran, nil)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.RemoveJob("j1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	engine.fire()
	if ran != 0 {
		t.Errorf("expected removed job not to run, got %d", ran)
	}
	if _, ok := s.GetJob("j1"); ok {
		t.Error("expected job gone after removal")
	}
}

func TestScheduler_RemoveJob_WhenUnknown_ShouldReturnError(t *testing.T) {
	s := NewScheduler(newFakeEngine())
	if err := s.RemoveJob("missing"); err == nil {
		t.Fatal("expected error for unknown job")
	}
	if err := s.RemoveJob(""); !errors.Is(err, ErrEmptyJobID) {
		t.Fatalf("expected ErrEmptyJobID, got %v", err)
	}
}

func TestScheduler_ListJobs_WhenEmpty_ShouldReturnEmptySlice(t *testing.T) {
	s := NewScheduler(newFakeEngine())
	jobs := s.ListJobs()
	if jobs == nil || len(jobs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", jobs)
	}
}

func TestScheduler_StartStop_ShouldDelegateToEngine(t *testing.T) {
	engine := newFakeEngine()
	s := NewScheduler(engine)
	s.Start()
	s.Stop()
	if !engine.started || !engine.stopped {
		t.Errorf("expected engine started and stopped, got %v/%v", engine.started, engine.stopped)
	}
}

func TestNewScheduler_WhenNilEngine_ShouldPanic(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewScheduler(nil)
}
