package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

type fakeBackend struct {
	mu      sync.Mutex
	records map[string]*ThreadRecord
	loadErr error
	saveErr error
	saves   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{records: map[string]*ThreadRecord{}}
}

func (f *fakeBackend) Load(ctx context.Context, threadID string) (*ThreadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	rec, ok := f.records[threadID]
	if !ok {
		return nil, ErrThreadNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeBackend) Save(ctx context.Context, rec *ThreadRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	clone := *rec
	f.records[rec.ThreadID] = &clone
	f.saves++
	return nil
}

func (f *fakeBackend) Delete(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, threadID)
	return nil
}

func TestGetOrCreateNewThread(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(newFakeBackend())
	sess, mem, err := store.GetOrCreate(context.Background(), contractx.SessionContext{
		ThreadID: "t1",
		Resume:   "ten years of Go",
	})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if sess.Resume != "ten years of Go" {
		t.Fatalf("unexpected resume: %q", sess.Resume)
	}
	if mem.Len() != 0 {
		t.Fatalf("expected empty memory, got %d messages", mem.Len())
	}

	_, _, err = store.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "   "})
	if !errors.Is(err, ErrInvalidThread) {
		t.Fatalf("expected ErrInvalidThread, got %v", err)
	}
}

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(newFakeBackend())
	_, mem1, err := store.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := mem1.Append(contractx.NewUserMessage("hello")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	_, mem2, err := store.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if mem2 != mem1 {
		t.Fatal("expected the same live memory instance")
	}
	if mem2.Len() != 1 {
		t.Fatalf("expected accumulated message, got %d", mem2.Len())
	}
}

func TestPersistAndHydrate(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()

	store := NewSessionStore(backend)
	sess := contractx.SessionContext{ThreadID: "t1", Resume: "resume text"}
	_, mem, err := store.GetOrCreate(context.Background(), sess)
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := mem.Append(contractx.NewUserMessage("hello")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	mem.ReplaceSummary("user said hello")

	if err := store.Persist(context.Background(), "t1"); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if backend.saves != 1 {
		t.Fatalf("expected 1 save, got %d", backend.saves)
	}

	// fresh store hydrating from the same backend
	rehydrated := NewSessionStore(backend)
	gotSess, gotMem, err := rehydrated.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if gotSess.Resume != "resume text" {
		t.Fatalf("resume lost across hydration: %q", gotSess.Resume)
	}
	if gotMem.Len() != 1 || gotMem.Messages()[0].Content != "hello" {
		t.Fatalf("history lost across hydration: %+v", gotMem.Messages())
	}
	if gotMem.Summary() != "user said hello" {
		t.Fatalf("summary lost across hydration: %q", gotMem.Summary())
	}
}

func TestPersistUnknownThread(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(newFakeBackend())
	if err := store.Persist(context.Background(), "nope"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestSetResume(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(nil)
	if err := store.SetResume("t1", "new"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}

	if _, _, err := store.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "t1"}); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := store.SetResume("t1", "new resume"); err != nil {
		t.Fatalf("SetResume() error = %v", err)
	}
	sess, _, ok := store.Lookup("t1")
	if !ok || sess.Resume != "new resume" {
		t.Fatalf("resume not updated: %+v ok=%v", sess, ok)
	}
}

func TestCheckpointEvictsFreshThread(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(newFakeBackend())

	// the thread only comes alive during the turn; reverting must remove it
	// entirely so the next turn hydrates from the backend again
	revert := store.Checkpoint("t1")
	_, mem, err := store.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := mem.Append(contractx.NewUserMessage("doomed")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	revert()

	if _, _, ok := store.Lookup("t1"); ok {
		t.Fatal("reverted thread still live")
	}
}

func TestCheckpointRestoresLiveState(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(nil)
	_, mem, err := store.GetOrCreate(context.Background(), contractx.SessionContext{ThreadID: "t1"})
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if err := mem.Append(contractx.NewUserMessage("kept")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	mem.ReplaceSummary("kept summary")

	revert := store.Checkpoint("t1")
	if err := mem.Append(contractx.NewUserMessage("doomed")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := mem.Append(contractx.NewAssistantMessage("also doomed", nil)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	mem.ReplaceSummary("doomed summary")
	revert()

	if mem.Len() != 1 || mem.Messages()[0].Content != "kept" {
		t.Fatalf("history not reverted: %+v", mem.Messages())
	}
	if mem.Summary() != "kept summary" {
		t.Fatalf("summary not reverted: %q", mem.Summary())
	}
	// the reverted memory accepts the same message again on retry
	if err := mem.Append(contractx.NewUserMessage("kept again")); err != nil {
		t.Fatalf("Append() after revert error = %v", err)
	}
}

func TestAcquireSerializesTurns(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(nil)

	var inside int
	var maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := store.Acquire("t1")
			defer release()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected exclusive section, saw %d concurrent holders", maxInside)
	}
}
