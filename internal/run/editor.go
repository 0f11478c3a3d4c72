package run

import (
	"sync"
	"sync/atomic"
)

// Editor is one code editor. At most one run is active on it at a time.
type Editor struct {
	ID      string
	running atomic.Bool

	key  string // registry key, guarded by Editors.mu
	refs int
}

func NewEditor(id string) *Editor {
	return &Editor{ID: id}
}

// Running reports whether a run is active.
func (e *Editor) Running() bool {
	return e.running.Load()
}

func (e *Editor) acquire() bool {
	return e.running.CompareAndSwap(false, true)
}

func (e *Editor) release() {
	e.running.Store(false)
}

// Editors keeps one Editor per (user, editor id) pair while requests hold
// it. Every Get must be paired with a Put; the entry is dropped when the
// last holder puts it back.
type Editors struct {
	mu      sync.Mutex
	editors map[string]*Editor
}

func NewEditors() *Editors {
	return &Editors{editors: make(map[string]*Editor)}
}

// Get returns the editor for the pair, creating it if no request holds it.
func (r *Editors) Get(userID, editorID string) *Editor {
	if editorID == "" {
		editorID = "default"
	}
	key := userID + "/" + editorID

	r.mu.Lock()
	defer r.mu.Unlock()
	ed, ok := r.editors[key]
	if !ok {
		ed = NewEditor(editorID)
		ed.key = key
		r.editors[key] = ed
	}
	ed.refs++
	return ed
}

// Put releases a hold taken by Get.
func (r *Editors) Put(ed *Editor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ed.refs--
	if ed.refs <= 0 && r.editors[ed.key] == ed {
		delete(r.editors, ed.key)
	}
}

// Len returns the number of held editors.
func (r *Editors) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}
