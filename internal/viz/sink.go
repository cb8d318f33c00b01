package viz

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/tethermap/internal/mapping"
)

// Sender is the part of *tea.Program the sink needs.
type Sender interface {
	Send(msg tea.Msg)
}

// TeaSink forwards messages to a Bubble Tea program from a goroutine of its
// own, so the simulation never waits on the UI. When the buffer is full new
// messages are dropped.
type TeaSink struct {
	to      Sender
	msgs    chan tea.Msg
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	dropped int
}

func NewTeaSink(to Sender, buffer int) *TeaSink {
	if buffer <= 0 {
		buffer = 64
	}
	s := &TeaSink{
		to:   to,
		msgs: make(chan tea.Msg, buffer),
		quit: make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msg := <-s.msgs:
				s.to.Send(msg)
			case <-s.quit:
				return
			}
		}
	}()
	return s
}

// Publish implements mapping.VisualizationSink.
func (s *TeaSink) Publish(res *mapping.Result) {
	s.Send(ResultMsg{Result: res})
}

func (s *TeaSink) Send(msg tea.Msg) {
	select {
	case <-s.quit:
		return
	default:
	}
	select {
	case s.msgs <- msg:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped counts messages discarded because the UI fell behind.
func (s *TeaSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close flushes buffered messages and stops the forwarding goroutine.
func (s *TeaSink) Close() {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		for {
			select {
			case msg := <-s.msgs:
				s.to.Send(msg)
			default:
				return
			}
		}
	})
}
