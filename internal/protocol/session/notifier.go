package session

// Observer is notified with the subsystems reported by a resolved idle wait.
// Observers are compared by identity, so implementations should be pointers.
type Observer interface {
	SubsystemsChanged(subsystems []string)
}

func (e *Engine) RegisterObserver(o Observer) {
	if o == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// UnregisterObserver removes the first registration of o.
func (e *Engine) UnregisterObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cur := range e.observers {
		if cur == o {
			e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
			return
		}
	}
}

func (e *Engine) snapshotObserversLocked() []Observer {
	out := make([]Observer, len(e.observers))
	copy(out, e.observers)
	return out
}

func notify(observers []Observer, subsystems []string) {
	for _, o := range observers {
		o.SubsystemsChanged(append([]string(nil), subsystems...))
	}
}
