package limiter

// Runs caps the number of extraction runs in flight at once, protecting
// the process from unbounded concurrent MuPDF work.
type Runs struct {
    sem chan struct{}
}

func NewRuns(max int) *Runs {
    if max <= 0 { max = 4 }
    return &Runs{sem: make(chan struct{}, max)}
}

// Allow tries to reserve a run slot. Returns a release function and true
// if a slot was free; otherwise nil-safe release and false.
func (l *Runs) Allow() (func(), bool) {
    select {
    case l.sem <- struct{}{}:
        return func() { <-l.sem }, true
    default:
        return func() {}, false
    }
}
