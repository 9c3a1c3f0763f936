package live

// Inbox is a one-slot signal. Any number of Signal calls before the
// receiver wakes collapse into a single pending signal.
type Inbox struct {
	ch chan struct{}
}

// NewInbox returns an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{ch: make(chan struct{}, 1)}
}

// Signal marks the inbox pending. It never blocks.
func (in *Inbox) Signal() {
	select {
	case in.ch <- struct{}{}:
	default:
	}
}

// C delivers a value while a signal is pending.
func (in *Inbox) C() <-chan struct{} {
	return in.ch
}

// Pending reports whether a signal is waiting.
func (in *Inbox) Pending() bool {
	return len(in.ch) > 0
}
