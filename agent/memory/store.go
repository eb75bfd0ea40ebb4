package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

var (
	ErrThreadNotFound = errors.New("thread record not found")
	ErrNilRecord      = errors.New("thread record is nil")
	ErrInvalidThread  = errors.New("thread id is empty")
)

// Store is the persistence contract for thread records.
type Store interface {
	Load(ctx context.Context, threadID string) (*ThreadRecord, error)
	Save(ctx context.Context, rec *ThreadRecord) error
	Delete(ctx context.Context, threadID string) error
}

// SessionStore owns the live ConversationMemory instances, keyed by thread
// id, hydrating lazily from the backing Store. Turns on the same thread must
// run under Acquire; the store serializes them with a per-thread exclusive
// section.
type SessionStore struct {
	backend Store

	mu      sync.Mutex
	threads map[string]*threadEntry
	locks   map[string]*threadLock
}

type threadEntry struct {
	sess contractx.SessionContext
	mem  *ConversationMemory
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func NewSessionStore(backend Store) *SessionStore {
	return &SessionStore{
		backend: backend,
		threads: make(map[string]*threadEntry),
		locks:   make(map[string]*threadLock),
	}
}

// Acquire blocks until the thread's exclusive section is free and returns the
// release function. Lock entries are dropped once unreferenced.
func (s *SessionStore) Acquire(threadID string) func() {
	if strings.TrimSpace(threadID) == "" {
		return func() {}
	}

	s.mu.Lock()
	lock := s.locks[threadID]
	if lock == nil {
		lock = &threadLock{}
		s.locks[threadID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(s.locks, threadID)
		}
		s.mu.Unlock()
	}
}

// GetOrCreate returns the live memory for threadID, hydrating it from the
// backing store when present, or creating an empty one bound to sess. The
// resume in sess is only consulted on first creation; an existing thread
// keeps its original session context.
func (s *SessionStore) GetOrCreate(ctx context.Context, sess contractx.SessionContext) (contractx.SessionContext, *ConversationMemory, error) {
	threadID := strings.TrimSpace(sess.ThreadID)
	if threadID == "" {
		return contractx.SessionContext{}, nil, ErrInvalidThread
	}

	s.mu.Lock()
	entry, ok := s.threads[threadID]
	s.mu.Unlock()
	if ok {
		return entry.sess, entry.mem, nil
	}

	if s.backend != nil {
		rec, err := s.backend.Load(ctx, threadID)
		switch {
		case err == nil:
			restored, mem, rerr := Restore(*rec)
			if rerr != nil {
				return contractx.SessionContext{}, nil, rerr
			}
			sess, mem = s.remember(restored, mem)
			return sess, mem, nil
		case !errors.Is(err, ErrThreadNotFound):
			return contractx.SessionContext{}, nil, err
		}
	}

	mem := NewConversationMemory(threadID)
	sess, mem = s.remember(sess, mem)
	return sess, mem, nil
}

// Checkpoint captures a thread's live state before a turn runs and returns
// the function that reverts to it. For a thread with no live entry yet, the
// revert evicts whatever the turn created, so the next turn re-hydrates from
// the backing store. Call under Acquire, like every other turn-time mutation.
func (s *SessionStore) Checkpoint(threadID string) func() {
	s.mu.Lock()
	entry, ok := s.threads[threadID]
	s.mu.Unlock()

	if !ok {
		return func() {
			s.mu.Lock()
			delete(s.threads, threadID)
			s.mu.Unlock()
		}
	}

	sess := entry.sess
	snap := entry.mem.snapshot()
	return func() {
		s.mu.Lock()
		entry.sess = sess
		s.mu.Unlock()
		entry.mem.restore(snap)
	}
}

// SetResume replaces the resume text bound to a live thread. Used when a
// caller re-uploads a document for an existing session.
func (s *SessionStore) SetResume(threadID string, resume string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.threads[threadID]
	if !ok {
		return ErrThreadNotFound
	}
	entry.sess.Resume = resume
	return nil
}

// Lookup returns the live entry without creating one.
func (s *SessionStore) Lookup(threadID string) (contractx.SessionContext, *ConversationMemory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.threads[threadID]
	if !ok {
		return contractx.SessionContext{}, nil, false
	}
	return entry.sess, entry.mem, true
}

// Persist writes the thread's current state through to the backing store.
func (s *SessionStore) Persist(ctx context.Context, threadID string) error {
	s.mu.Lock()
	entry, ok := s.threads[threadID]
	s.mu.Unlock()
	if !ok {
		return ErrThreadNotFound
	}
	if s.backend == nil {
		return nil
	}
	rec := Snapshot(entry.sess, entry.mem)
	return s.backend.Save(ctx, &rec)
}

func (s *SessionStore) remember(sess contractx.SessionContext, mem *ConversationMemory) (contractx.SessionContext, *ConversationMemory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.threads[sess.ThreadID]; ok {
		// lost a creation race; keep the first entry
		return existing.sess, existing.mem
	}
	s.threads[sess.ThreadID] = &threadEntry{sess: sess, mem: mem}
	return sess, mem
}
