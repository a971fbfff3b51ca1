package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// readTail reads the last MaxLogTailLines lines of a log file via an
// in-sandbox tail command, truncated to MaxLogTailChars keeping the tail.
func readTail(ctx context.Context, sb Sandbox, path string) (string, error) {
	cmd := fmt.Sprintf("tail -n %d %s 2>/dev/null || true", MaxLogTailLines, shellQuote(path))
	result, err := sb.Exec(ctx, cmd, 10*time.Second)
	if err != nil {
		return "", err
	}
	return truncateTail(result.Stdout), nil
}

func truncateTail(s string) string {
	if len(s) <= MaxLogTailChars {
		return s
	}
	return s[len(s)-MaxLogTailChars:]
}

// logStreamer polls a log file on an interval and emits only the content
// new since the last poll, diffing against the last known trailing line.
type logStreamer struct {
	sb     Sandbox
	path   string
	phase  string
	emit   func(phase, message string)
	mu     sync.Mutex
	lastTail string
	stop   chan struct{}
	done   chan struct{}
}

func newLogStreamer(sb Sandbox, path, phase string, emit func(phase, message string)) *logStreamer {
	return &logStreamer{sb: sb, path: path, phase: phase, emit: emit, stop: make(chan struct{}), done: make(chan struct{})}
}

func (s *logStreamer) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(LogTailInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *logStreamer) poll(ctx context.Context) {
	tail, err := readTail(ctx, s.sb, s.path)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tail == s.lastTail {
		return
	}
	newContent := diffTail(s.lastTail, tail)
	s.lastTail = tail
	if newContent != "" {
		s.emit(s.phase, newContent)
	}
}

// diffTail returns the portion of next that is new relative to prev, using
// prev's trailing line as the anchor; if the anchor can't be found (file
// rotated/truncated), the whole of next is treated as new.
func diffTail(prev, next string) string {
	if prev == "" {
		return next
	}
	prevLines := strings.Split(prev, "\n")
	anchor := prevLines[len(prevLines)-1]
	if anchor == "" && len(prevLines) > 1 {
		anchor = prevLines[len(prevLines)-2]
	}
	idx := strings.LastIndex(next, anchor)
	if anchor == "" || idx == -1 {
		return next
	}
	rest := next[idx+len(anchor):]
	return strings.TrimPrefix(rest, "\n")
}

func (s *logStreamer) Stop() {
	close(s.stop)
	<-s.done
}

// heartbeat calls its emit function on HeartbeatInterval until stopped.
type heartbeat struct {
	stop chan struct{}
	done chan struct{}
}

func startHeartbeat(ctx context.Context, emit func()) *heartbeat {
	h := &heartbeat{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.stop:
				return
			case <-ticker.C:
				emit()
			}
		}
	}()
	return h
}

func (h *heartbeat) Stop() {
	close(h.stop)
	<-h.done
}
