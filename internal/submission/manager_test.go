package submission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/hirescribe-integrity/internal/cache"
	"github.com/SAP-F-2025/hirescribe-integrity/internal/models"
)

const testPrefix = "test:"

type fakeSaver struct {
	mu    sync.Mutex
	calls int
	id    string
	err   error
	gate  chan struct{}
	last  SaveRequest
	// keys already stored, like the unique submission_key index
	stored map[string]bool
}

func (f *fakeSaver) Save(ctx context.Context, req SaveRequest) (SaveResult, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	id, err, gate := f.id, f.err, f.gate
	existing := f.stored[req.SubmissionKey]
	if err == nil {
		if f.stored == nil {
			f.stored = map[string]bool{}
		}
		f.stored[req.SubmissionKey] = true
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return SaveResult{}, err
	}
	return SaveResult{ID: id, Existing: existing}, nil
}

func (f *fakeSaver) set(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id, f.err = id, err
}

func (f *fakeSaver) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type countingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *countingNotifier) Submitted(_ context.Context, _ SaveRequest, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, id)
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, cache.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, cache.NewCacheHelper(client, testPrefix)
}

func payload() Payload {
	return Payload{
		CompletedPrompts: []models.CompletedPrompt{
			{PromptID: "p1", Prompt: "Describe a project", Response: "...", WordCount: 150},
		},
		AptitudeScore: 7,
		AptitudeTotal: 10,
	}
}

func TestKeys(t *testing.T) {
	if got := NormalizeCandidate("  Jane DOE ", " Backend Engineer"); got != "jane doe_backend engineer" {
		t.Errorf("NormalizeCandidate = %q", got)
	}
	if got := SubmissionKey("Jane", "Dev"); got != "assessment_submitted_jane_dev" {
		t.Errorf("SubmissionKey = %q", got)
	}
	if got := LockKey("Jane", "Dev"); got != "assessment_submission_lock_jane_dev" {
		t.Errorf("LockKey = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{err: errors.New("The query requires an INDEX"), want: KindIndexRequired},
		{err: errors.New("permission denied"), want: KindPermissionDenied},
		{err: errors.New("connection reset"), want: KindRemoteFailure},
		{err: newError(KindNoCompletedPrompts, nil), want: KindNoCompletedPrompts},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := classify(tt.err)
			if got.Kind != tt.want {
				t.Errorf("classify(%q).Kind = %q, want %q", tt.err, got.Kind, tt.want)
			}
			if got.Message != UserMessage(tt.want) {
				t.Errorf("unexpected message %q", got.Message)
			}
		})
	}
}

func TestManager_ConcurrentSubmitSavesOnce(t *testing.T) {
	_, store := newTestStore(t)
	saver := &fakeSaver{id: "assessment-1", gate: make(chan struct{})}
	notifier := &countingNotifier{}
	coord := NewCoordinator(store, saver, Options{Notifier: notifier})
	manager := coord.NewManager("Jane", "Dev")

	const n = 10
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := manager.Submit(context.Background(), payload())
			ids[i], errs[i] = res.AssessmentID, err
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(saver.gate)
	wg.Wait()

	if got := saver.Calls(); got != 1 {
		t.Fatalf("expected exactly one save, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Errorf("call %d failed: %v", i, errs[i])
		}
		if ids[i] != "assessment-1" {
			t.Errorf("call %d got id %q", i, ids[i])
		}
	}
	if len(notifier.ids) != 1 {
		t.Errorf("expected one notification, got %d", len(notifier.ids))
	}

	st := manager.State()
	if !st.IsSubmitted || st.IsSubmitting || st.SubmissionLock || st.SubmissionStartTime != nil {
		t.Errorf("unexpected final state %+v", st)
	}
}

func TestManager_SecondManagerReusesPersistedID(t *testing.T) {
	mr, store := newTestStore(t)
	saver := &fakeSaver{id: "abc123"}

	first := NewCoordinator(store, saver, Options{}).NewManager("Jane Doe", "Dev")
	res, err := first.Submit(context.Background(), payload())
	if err != nil || res.AssessmentID != "abc123" || res.Existing {
		t.Fatalf("first submit = (%+v, %v)", res, err)
	}

	if ttl := mr.TTL(testPrefix + SubmissionKey("Jane Doe", "Dev")); ttl != 0 {
		t.Errorf("submission record must be durable, ttl %v", ttl)
	}
	if ttl := mr.TTL(testPrefix + LockKey("Jane Doe", "Dev")); ttl != DefaultLockTTL {
		t.Errorf("session lock must stay set with its ttl, got %v", ttl)
	}

	again, err := first.Submit(context.Background(), payload())
	if err != nil || again.AssessmentID != "abc123" || !again.Existing {
		t.Errorf("repeat submit = (%+v, %v)", again, err)
	}

	// a fresh process with the same store, candidate typed differently
	remounted := NewCoordinator(store, saver, Options{}).NewManager(" jane doe ", "DEV")
	res, err = remounted.Submit(context.Background(), payload())
	if err != nil || res.AssessmentID != "abc123" || !res.Existing {
		t.Errorf("remounted submit = (%+v, %v)", res, err)
	}
	if got := saver.Calls(); got != 1 {
		t.Errorf("expected no new save, got %d calls", got)
	}
}

func TestManager_PermissionDeniedAllowsRetry(t *testing.T) {
	mr, store := newTestStore(t)
	saver := &fakeSaver{err: errors.New("permission denied")}
	manager := NewCoordinator(store, saver, Options{}).NewManager("Jane", "Dev")

	_, err := manager.Submit(context.Background(), payload())
	var se *Error
	if !errors.As(err, &se) || se.Kind != KindPermissionDenied {
		t.Fatalf("expected permission error, got %v", err)
	}
	if se.Message != "Permission denied. Please check your access rights." {
		t.Errorf("unexpected message %q", se.Message)
	}

	st := manager.State()
	if st.SubmissionError != se.Message || st.IsSubmitted || st.IsSubmitting {
		t.Errorf("unexpected state after failure %+v", st)
	}
	if mr.Exists(testPrefix + LockKey("Jane", "Dev")) {
		t.Error("session lock must be cleared after a failure")
	}

	saver.set("retry-id", nil)
	res, err := manager.Submit(context.Background(), payload())
	if err != nil || res.AssessmentID != "retry-id" {
		t.Fatalf("retry = (%+v, %v)", res, err)
	}
	if saver.Calls() != 2 {
		t.Errorf("expected the retry to reach the save call, got %d calls", saver.Calls())
	}
	if st := manager.State(); st.RetryCount != 2 || st.SubmissionError != "" {
		t.Errorf("unexpected state after retry %+v", st)
	}
}

func TestManager_Validation(t *testing.T) {
	tests := []struct {
		name     string
		candName string
		position string
		payload  Payload
		want     ErrorKind
	}{
		{name: "missing name", candName: "  ", position: "Dev", payload: payload(), want: KindMissingCandidateInfo},
		{name: "missing position", candName: "Jane", position: "", payload: payload(), want: KindMissingCandidateInfo},
		{name: "no prompts", candName: "Jane", position: "Dev", payload: Payload{}, want: KindNoCompletedPrompts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr, store := newTestStore(t)
			saver := &fakeSaver{id: "x"}
			manager := NewCoordinator(store, saver, Options{}).NewManager(tt.candName, tt.position)

			_, err := manager.Submit(context.Background(), tt.payload)
			var se *Error
			if !errors.As(err, &se) || se.Kind != tt.want {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
			if saver.Calls() != 0 {
				t.Error("invalid input must not reach the save call")
			}
			if mr.Exists(testPrefix + LockKey(tt.candName, tt.position)) {
				t.Error("lock must be released after a validation failure")
			}
		})
	}
}

func TestManager_LockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	saver := &fakeSaver{id: "x"}
	manager := NewCoordinator(store, saver, Options{}).NewManager("Jane", "Dev")

	if ok, _ := store.SetNX(ctx, LockKey("Jane", "Dev"), "1", time.Hour); !ok {
		t.Fatal("could not plant lock")
	}

	_, err := manager.Submit(ctx, payload())
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if ok, _ := store.Exists(ctx, LockKey("Jane", "Dev")); !ok {
		t.Error("a duplicate attempt must not remove the other attempt's lock")
	}
	if st := manager.State(); st.SubmissionError != "" {
		t.Errorf("duplicate is not a failure, got error %q", st.SubmissionError)
	}

	// the other attempt has finished in the meantime
	store.SetString(ctx, SubmissionKey("Jane", "Dev"), "other-id", 0)
	res, err := manager.Submit(ctx, payload())
	if err != nil || res.AssessmentID != "other-id" || !res.Existing {
		t.Errorf("expected adopted id, got (%+v, %v)", res, err)
	}
	if saver.Calls() != 0 {
		t.Errorf("expected no save call, got %d", saver.Calls())
	}
}

func TestManager_SanitizesMetrics(t *testing.T) {
	_, store := newTestStore(t)
	saver := &fakeSaver{id: "x"}
	manager := NewCoordinator(store, saver, Options{}).NewManager("Jane", "Dev")

	p := payload()
	p.Metrics = &models.AntiCheatingMetrics{WindowMetrics: models.WindowMetrics{TabSwitches: -4}}
	if _, err := manager.Submit(context.Background(), p); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := saver.last.Metrics
	if got.TabSwitches != 0 || got.InactivityPeriods == nil {
		t.Errorf("metrics were not sanitized: %+v", got)
	}
	if got.WordsPerMinute != 30 {
		t.Errorf("expected fallback WPM of 30, got %v", got.WordsPerMinute)
	}
	if saver.last.SubmissionKey != SubmissionKey("Jane", "Dev") {
		t.Errorf("unexpected submission key %q", saver.last.SubmissionKey)
	}
}

func TestManager_MemoryStore(t *testing.T) {
	saver := &fakeSaver{id: "mem"}
	coord := NewCoordinator(cache.NewMemoryStore(), saver, Options{})

	if _, err := coord.NewManager("A", "B").Submit(context.Background(), payload()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id, ok := coord.SubmittedID(context.Background(), "a", "b"); !ok || id != "mem" {
		t.Errorf("SubmittedID = (%q, %v)", id, ok)
	}
}

func TestManager_RowFoundBySubmissionKeyIsNotAnnouncedAgain(t *testing.T) {
	mr, store := newTestStore(t)
	saver := &fakeSaver{id: "row-1"}
	notifier := &countingNotifier{}
	coord := NewCoordinator(store, saver, Options{Notifier: notifier})

	res, err := coord.NewManager("Jane", "Dev").Submit(context.Background(), payload())
	if err != nil || res.Existing {
		t.Fatalf("first submit = (%+v, %v)", res, err)
	}

	// the KV record is gone but the row is still in the database
	mr.Del(testPrefix + SubmissionKey("Jane", "Dev"))
	mr.Del(testPrefix + LockKey("Jane", "Dev"))

	res, err = coord.NewManager("Jane", "Dev").Submit(context.Background(), payload())
	if err != nil || res.AssessmentID != "row-1" || !res.Existing {
		t.Fatalf("second submit = (%+v, %v)", res, err)
	}
	if saver.Calls() != 2 {
		t.Errorf("expected the second submit to reach the save call, got %d", saver.Calls())
	}
	if len(notifier.ids) != 1 {
		t.Errorf("expected one notification, got %d", len(notifier.ids))
	}
	if id, ok := coord.SubmittedID(context.Background(), "Jane", "Dev"); !ok || id != "row-1" {
		t.Errorf("submission record not restored, got (%q, %v)", id, ok)
	}
}
