package bridge

import (
	"sync"

	"ircwire/util"
)

// subscriber is one WebSocket's outbound queue.  Only its writer
// goroutine touches the socket.
type subscriber struct {
	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newSubscriber(size int) *subscriber {
	return &subscriber{out: make(chan []byte, size), done: make(chan struct{})}
}

// offer queues msg without blocking and reports whether it fit.
func (s *subscriber) offer(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() { s.once.Do(func() { close(s.done) }) }

// hub is the set of live subscribers.
type hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	size   int
	logger *util.Logger
}

func newHub(size int, logger *util.Logger) *hub {
	return &hub{subs: make(map[*subscriber]struct{}), size: size, logger: logger}
}

func (h *hub) subscribe() *subscriber {
	s := newSubscriber(h.size)
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	s.close()
}

// broadcast offers msg to every subscriber.  One that cannot keep up
// is dropped rather than allowed to stall the others.
func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		h.logger.Debug("bridge: no subscribers, event dropped")
		return
	}
	for s := range h.subs {
		if !s.offer(msg) {
			h.logger.Warn("bridge: subscriber fell behind, dropping it")
			delete(h.subs, s)
			s.close()
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		s.close()
	}
}
