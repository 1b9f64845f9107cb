package integrity

import (
	"math"
	"sync"
	"time"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

const (
	// PauseThreshold is the inter-keystroke gap counted as a pause.
	PauseThreshold = 2000 * time.Millisecond
	// MaxWordsPerMinute caps the reported typing speed.
	MaxWordsPerMinute = 200.0
	// CharsPerWord is the fixed "5 keystrokes = 1 word" heuristic.
	CharsPerWord = 5.0

	minElapsedMinutes   = 0.1
	snapshotRecomputeAt = 5 * time.Second
)

// WordsPerMinute derives typing speed from the keystroke count and the time
// elapsed since the session started.
func WordsPerMinute(keystrokes int, elapsed time.Duration) float64 {
	minutes := float64(elapsed) / float64(time.Minute)
	if keystrokes <= 0 || minutes < minElapsedMinutes {
		return 0
	}
	wpm := (float64(keystrokes) / CharsPerWord) / minutes
	if math.IsNaN(wpm) || wpm < 0 {
		return 0
	}
	return math.Min(MaxWordsPerMinute, wpm)
}

// KeystrokeTracker measures keystroke count, pauses and typing speed.
type KeystrokeTracker struct {
	mu           sync.Mutex
	clock        Clock
	sessionStart time.Time
	metrics      models.TypingMetrics
}

func NewKeystrokeTracker(clock Clock) *KeystrokeTracker {
	if clock == nil {
		clock = SystemClock()
	}
	return &KeystrokeTracker{
		clock:        clock,
		sessionStart: clock.Now(),
	}
}

// HandleKeyPress records one key-down observed at the given time.
func (t *KeystrokeTracker) HandleKeyPress(at time.Time) models.TypingMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := at.UnixMilli()
	var sinceLast int64
	if t.metrics.LastKeystrokeTime != 0 {
		sinceLast = now - t.metrics.LastKeystrokeTime
		if sinceLast < 0 {
			// out-of-order delivery
			sinceLast = 0
		}
	}

	t.metrics.Keystrokes++
	if sinceLast > PauseThreshold.Milliseconds() {
		t.metrics.Pauses++
	}
	t.metrics.TotalTypingTime += sinceLast
	if now > t.metrics.LastKeystrokeTime {
		t.metrics.LastKeystrokeTime = now
	}
	t.metrics.WordsPerMinute = WordsPerMinute(t.metrics.Keystrokes, at.Sub(t.sessionStart))

	return t.metrics
}

// TypingMetrics returns the current snapshot. Once the session is older than
// five seconds the speed is recomputed against the current time, so it decays
// while the candidate is not typing.
func (t *KeystrokeTracker) TypingMetrics() models.TypingMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := t.metrics
	elapsed := t.clock.Now().Sub(t.sessionStart)
	if elapsed >= snapshotRecomputeAt {
		snapshot.WordsPerMinute = WordsPerMinute(snapshot.Keystrokes, elapsed)
	}
	return snapshot
}
