package registry

import (
    "errors"
    "fmt"
    "hash/fnv"
    "sync"

    "github.com/google/uuid"
)

// ErrConflict is returned by Begin when a job for the same key is already
// in flight. The caller should poll instead of resubmitting.
var ErrConflict = errors.New("job already running for this document")

// Key pairs a user and a document, scoping one concurrent run.
type Key struct {
    UserID     string
    DocumentID string
}

func (k Key) String() string { return k.UserID + "/" + k.DocumentID }

// State is the job lifecycle state. Transitions are monotonic: once a
// terminal state is set the entry never changes again.
type State int

const (
    StateRunning State = iota
    StateFinished
    StateCancelled
    StateFailed
)

func (s State) String() string {
    switch s {
    case StateRunning:
        return "running"
    case StateFinished:
        return "finished"
    case StateCancelled:
        return "cancelled"
    case StateFailed:
        return "failed"
    }
    return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool { return s != StateRunning }

// Snapshot is a point-in-time view of a job entry for status pollers.
type Snapshot struct {
    RunID    string
    State    State
    Progress int
    Total    int
}

type entry struct {
    runID           string
    state           State
    tablesTotal     int
    tablesProgress  int
    cancelRequested bool
}

const shardCount = 16

type shard struct {
    mu      sync.Mutex
    entries map[Key]*entry
}

// Registry is a process-wide table of in-flight extraction jobs. It is
// sharded by key so status and cancel traffic for one user never blocks
// runs for another.
type Registry struct {
    shards [shardCount]*shard
}

func New() *Registry {
    r := &Registry{}
    for i := range r.shards {
        r.shards[i] = &shard{entries: make(map[Key]*entry)}
    }
    return r
}

func (r *Registry) shardFor(k Key) *shard {
    h := fnv.New32a()
    _, _ = h.Write([]byte(k.UserID))
    _, _ = h.Write([]byte{0})
    _, _ = h.Write([]byte(k.DocumentID))
    return r.shards[h.Sum32()%shardCount]
}

// Handle references one live job entry. All methods serialize on the
// owning shard's lock.
type Handle struct {
    key   Key
    runID string
    sh    *shard
    e     *entry
}

func (h *Handle) Key() Key      { return h.key }
func (h *Handle) RunID() string { return h.runID }

// Begin allocates a Running entry for key. It fails with ErrConflict while
// a non-terminal entry exists for the same key; a leftover terminal entry
// is replaced.
func (r *Registry) Begin(key Key, tablesTotal int) (*Handle, error) {
    sh := r.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    if old, ok := sh.entries[key]; ok && !old.state.Terminal() {
        return nil, fmt.Errorf("%w: %s", ErrConflict, key)
    }
    e := &entry{runID: uuid.NewString(), state: StateRunning, tablesTotal: tablesTotal}
    sh.entries[key] = e
    return &Handle{key: key, runID: e.runID, sh: sh, e: e}, nil
}

// Tick increments the job's progress counter by one, capped at the total.
func (h *Handle) Tick() {
    h.sh.mu.Lock()
    defer h.sh.mu.Unlock()
    if h.e.tablesProgress < h.e.tablesTotal {
        h.e.tablesProgress++
    }
}

// SetTotal updates the expected artifact count once the engine knows it.
func (h *Handle) SetTotal(total int) {
    h.sh.mu.Lock()
    defer h.sh.mu.Unlock()
    if total >= h.e.tablesProgress {
        h.e.tablesTotal = total
    }
}

// CancelRequested is the runner's non-blocking cooperative check.
func (h *Handle) CancelRequested() bool {
    h.sh.mu.Lock()
    defer h.sh.mu.Unlock()
    return h.e.cancelRequested
}

// Finish moves the entry to a terminal state. Finishing an already
// terminal entry is a no-op; the first terminal state wins.
func (h *Handle) Finish(outcome State) {
    if !outcome.Terminal() {
        return
    }
    h.sh.mu.Lock()
    defer h.sh.mu.Unlock()
    if h.e.state.Terminal() {
        return
    }
    h.e.state = outcome
}

// RequestCancel flags the entry for cooperative cancellation. It reports
// whether a running job was found; against a missing or already terminal
// entry it is a no-op returning false.
func (r *Registry) RequestCancel(key Key) bool {
    sh := r.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    e, ok := sh.entries[key]
    if !ok || e.state.Terminal() {
        return false
    }
    e.cancelRequested = true
    return true
}

// Status returns a snapshot of the entry, or false if the key is unknown
// (never begun, or already retired).
func (r *Registry) Status(key Key) (Snapshot, bool) {
    sh := r.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    e, ok := sh.entries[key]
    if !ok {
        return Snapshot{}, false
    }
    return Snapshot{RunID: e.runID, State: e.state, Progress: e.tablesProgress, Total: e.tablesTotal}, true
}

// Retire removes the entry. Called once the terminal state has been
// delivered to the client.
func (r *Registry) Retire(key Key) {
    sh := r.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    delete(sh.entries, key)
}

// Len reports the number of live entries across all shards.
func (r *Registry) Len() int {
    n := 0
    for _, sh := range r.shards {
        sh.mu.Lock()
        n += len(sh.entries)
        sh.mu.Unlock()
    }
    return n
}
