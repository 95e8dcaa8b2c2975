package editor

import (
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// treeSaver runs at most one tree save at a time. Requests made while a
// save is running are coalesced into a single follow-up save, which takes
// its snapshot when it starts.
type treeSaver struct {
	mu       sync.Mutex
	idle     *sync.Cond
	dirty    bool
	running  bool
	snapshot func() domain.Tree
	save     func(domain.Tree) error
}

func newTreeSaver(snapshot func() domain.Tree, save func(domain.Tree) error) *treeSaver {
	s := &treeSaver{snapshot: snapshot, save: save}
	s.idle = sync.NewCond(&s.mu)
	return s
}

func (s *treeSaver) request() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = true
	if s.running {
		return
	}
	s.running = true
	go s.loop()
}

func (s *treeSaver) loop() {
	for {
		s.mu.Lock()
		if !s.dirty {
			s.running = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		s.dirty = false
		s.mu.Unlock()

		_ = s.save(s.snapshot())
	}
}

func (s *treeSaver) wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running {
		s.idle.Wait()
	}
}

func (s *treeSaver) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// tracker counts background writes so Flush can wait for them.
type tracker struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

func newTracker() *tracker {
	t := &tracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *tracker) add() {
	t.mu.Lock()
	t.n++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 {
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

func (t *tracker) wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.n > 0 {
		t.cond.Wait()
	}
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}
