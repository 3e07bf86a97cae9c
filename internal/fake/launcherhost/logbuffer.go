package launcherhost

import (
	"sync"
)

const MaxLogLines = 1000

// LogBuffer keeps the most recent lines for get_logs and collects lines that
// have not been pushed to the clients yet.
type LogBuffer struct {
	m       sync.Mutex
	cache   []string
	pending []string
}

func (b *LogBuffer) Append(lines ...string) {
	b.m.Lock()
	defer b.m.Unlock()

	b.cache = append(b.cache, lines...)
	if len(b.cache) > MaxLogLines {
		b.cache = append([]string(nil), b.cache[len(b.cache)-MaxLogLines:]...)
	}
	b.pending = append(b.pending, lines...)
}

func (b *LogBuffer) Cache() []string {
	b.m.Lock()
	defer b.m.Unlock()

	result := make([]string, len(b.cache))
	copy(result, b.cache)
	return result
}

// Drain returns the pending lines and forgets them.
func (b *LogBuffer) Drain() []string {
	b.m.Lock()
	defer b.m.Unlock()

	lines := b.pending
	b.pending = nil
	return lines
}
