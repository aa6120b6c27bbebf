// Package conversation holds the ordered record of exchanged messages.
package conversation

import (
	"sync"

	"voicechat/internal/domain"
)

// Observer receives every log mutation in the order it was applied. Observers
// run without any log lock held, so they may read, mutate or resubscribe.
type Observer func(change domain.LogChange, messages []domain.Message)

type subscription struct {
	id       int
	observer Observer
}

type notification struct {
	change   domain.LogChange
	snapshot []domain.Message
}

// Log is an append-only message sequence whose only in-place mutation is
// replacing or dropping a pending message.
type Log struct {
	mu          sync.RWMutex
	messages    []domain.Message
	queue       []notification
	dispatching bool

	obsMu     sync.Mutex
	observers []subscription
	nextObs   int
}

func NewLog() *Log {
	return &Log{}
}

// Append adds a message to the tail and returns its index. A pending message
// cannot be appended while the tail is already pending.
func (l *Log) Append(msg domain.Message) (int, error) {
	l.mu.Lock()
	if msg.IsPending() && l.tailPendingLocked() {
		l.mu.Unlock()
		return -1, &domain.InvalidStateError{Op: "append pending", State: "tail pending"}
	}
	l.messages = append(l.messages, msg)
	index := len(l.messages) - 1
	l.publishLocked(domain.LogChange{Kind: domain.LogChangeAppended, Index: index, Message: msg})
	return index, nil
}

// ReplaceTail overwrites a pending tail in place.
func (l *Log) ReplaceTail(msg domain.Message) error {
	l.mu.Lock()
	if !l.tailPendingLocked() {
		l.mu.Unlock()
		return &domain.InvalidStateError{Op: "replace tail", State: l.tailStateLocked()}
	}
	return l.replaceLocked(msg)
}

// ReplaceTailAt overwrites the tail only when it is still the pending message
// with the given id at the given index.
func (l *Log) ReplaceTailAt(index int, id string, msg domain.Message) error {
	l.mu.Lock()
	last := len(l.messages) - 1
	if last < 0 || last != index || l.messages[last].ID != id {
		l.mu.Unlock()
		return &domain.InvalidStateError{Op: "replace tail", State: "tail moved"}
	}
	if !l.messages[last].IsPending() {
		l.mu.Unlock()
		return &domain.InvalidStateError{Op: "replace tail", State: l.tailStateLocked()}
	}
	return l.replaceLocked(msg)
}

// ReplacePendingAt overwrites the pending message with the given id at index,
// wherever it sits. It settles a placeholder that is no longer the tail.
func (l *Log) ReplacePendingAt(index int, id string, msg domain.Message) error {
	l.mu.Lock()
	if index < 0 || index >= len(l.messages) || l.messages[index].ID != id {
		l.mu.Unlock()
		return &domain.InvalidStateError{Op: "replace pending", State: "message not found"}
	}
	if !l.messages[index].IsPending() {
		l.mu.Unlock()
		return &domain.InvalidStateError{Op: "replace pending", State: string(l.messages[index].Status)}
	}
	l.messages[index] = msg
	l.publishLocked(domain.LogChange{Kind: domain.LogChangeReplaced, Index: index, Message: msg})
	return nil
}

// DropTail removes a pending tail.
func (l *Log) DropTail() error {
	l.mu.Lock()
	if !l.tailPendingLocked() {
		l.mu.Unlock()
		return &domain.InvalidStateError{Op: "drop tail", State: l.tailStateLocked()}
	}
	last := len(l.messages) - 1
	dropped := l.messages[last]
	l.messages = l.messages[:last]
	l.publishLocked(domain.LogChange{Kind: domain.LogChangeDropped, Index: last, Message: dropped})
	return nil
}

// Messages returns a copy of the log in insertion order.
func (l *Log) Messages() []domain.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

// Tail returns the last message and its index.
func (l *Log) Tail() (domain.Message, int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return domain.Message{}, -1, false
	}
	last := len(l.messages) - 1
	return l.messages[last], last, true
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Subscribe registers an observer and returns a function that removes it.
func (l *Log) Subscribe(observer Observer) func() {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	id := l.nextObs
	l.nextObs++
	l.observers = append(l.observers, subscription{id: id, observer: observer})

	return func() {
		l.obsMu.Lock()
		defer l.obsMu.Unlock()
		for i, sub := range l.observers {
			if sub.id == id {
				l.observers = append(l.observers[:i:i], l.observers[i+1:]...)
				return
			}
		}
	}
}

func (l *Log) replaceLocked(msg domain.Message) error {
	last := len(l.messages) - 1
	l.messages[last] = msg
	l.publishLocked(domain.LogChange{Kind: domain.LogChangeReplaced, Index: last, Message: msg})
	return nil
}

// publishLocked queues the change and releases l.mu. The first publisher
// drains the queue; publishers arriving while it runs return at once, so
// observers always see mutations in application order.
func (l *Log) publishLocked(change domain.LogChange) {
	l.queue = append(l.queue, notification{change: change, snapshot: l.snapshotLocked()})
	if l.dispatching {
		l.mu.Unlock()
		return
	}
	l.dispatching = true
	l.mu.Unlock()
	l.drain()
}

func (l *Log) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.dispatching = false
			l.mu.Unlock()
			return
		}
		next := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		for _, sub := range l.subscribers() {
			sub.observer(next.change, next.snapshot)
		}
	}
}

func (l *Log) subscribers() []subscription {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()
	out := make([]subscription, len(l.observers))
	copy(out, l.observers)
	return out
}

func (l *Log) snapshotLocked() []domain.Message {
	out := make([]domain.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *Log) tailPendingLocked() bool {
	return len(l.messages) > 0 && l.messages[len(l.messages)-1].IsPending()
}

func (l *Log) tailStateLocked() string {
	if len(l.messages) == 0 {
		return "empty"
	}
	return string(l.messages[len(l.messages)-1].Status)
}
