package sync

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// UpdateMsg is a tea.Msg carrying the synchronizer state after a change.
type UpdateMsg struct {
	State State
}

// Start spawns the poll goroutine: one immediate poll, then one per
// interval. Ticks are skipped while the client is not visible. Start is a
// no-op when already running or after Stop.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.pollLoop()
}

// Stop halts polling and discards every response that arrives later.
// It waits for the poll goroutine to exit. Calling Stop twice is safe.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	close(s.stopCh)
	select {
	case <-s.updates:
	default:
	}
	close(s.updates)
	s.mu.Unlock()

	s.cancel()
	if wasRunning {
		<-s.done
	}
}

// SetVisible records whether the user can currently see the client.
func (s *Synchronizer) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

// Refresh requests an immediate poll, regardless of visibility.
func (s *Synchronizer) Refresh() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Updates delivers the latest state after every change. Only the newest
// state is buffered. The channel is closed by Stop.
func (s *Synchronizer) Updates() <-chan UpdateMsg {
	return s.updates
}

// WaitForUpdate returns a tea.Cmd that waits for the next state change.
// Call it again after handling each UpdateMsg to keep listening.
func (s *Synchronizer) WaitForUpdate() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-s.updates
		if !ok {
			return nil
		}
		return msg
	}
}

func (s *Synchronizer) pollLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.poll()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			visible := s.visible
			s.mu.Unlock()
			if !visible {
				s.logger.Debug("client hidden, skipping poll")
				continue
			}
			s.poll()
		case <-s.triggerCh:
			s.poll()
		}
	}
}

func (s *Synchronizer) poll() {
	// Failures are already logged and the previous count kept.
	if err := s.PollUnreadCount(s.pollCtx); err != nil {
		s.logger.Debug("poll tick finished with error", zap.Error(err))
	}
}

// publishLocked hands the current state to the Updates channel,
// replacing any undelivered state. Callers hold s.mu.
func (s *Synchronizer) publishLocked() {
	if s.stopped {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- UpdateMsg{State: s.stateLocked()}:
	default:
	}
}
