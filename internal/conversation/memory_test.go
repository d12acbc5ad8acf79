package conversation

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeTime provides an injectable clock for deterministic testing.
type fakeTime struct {
	mu      sync.Mutex
	current time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeTime) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
}

func newTestStore(opts ...Option) (*InMemoryStore, *fakeTime) {
	s := NewInMemoryStore(opts...)
	ft := &fakeTime{current: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = ft.Now
	return s, ft
}

func texts(turns []Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Text
	}
	return out
}

func TestInMemoryStore_KeepsLastSix(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	for i := 1; i <= 10; i++ {
		if err := store.Append("u1", UserTurn(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Append: unexpected error: %v", err)
		}
	}

	got, err := store.Get("u1")
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	want := []string{"m5", "m6", "m7", "m8", "m9", "m10"}
	if fmt.Sprint(texts(got)) != fmt.Sprint(want) {
		t.Errorf("Get() = %v, want %v", texts(got), want)
	}
}

func TestInMemoryStore_SevenMessages(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	for i := 1; i <= 7; i++ {
		if err := store.Append("u1", UserTurn(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("Append: unexpected error: %v", err)
		}
		if err := store.Truncate("u1"); err != nil {
			t.Fatalf("Truncate: unexpected error: %v", err)
		}
		got, _ := store.Get("u1")
		wantLen := min(i, DefaultMaxTurns)
		if len(got) != wantLen {
			t.Fatalf("after %d messages: len = %d, want %d", i, len(got), wantLen)
		}
	}

	got, _ := store.Get("u1")
	if got[0].Text != "m2" || got[5].Text != "m7" {
		t.Errorf("history = %v, want m2..m7 oldest first", texts(got))
	}
}

func TestInMemoryStore_PairsAlternate(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	for i := 1; i <= 4; i++ {
		_ = store.Append("u1", UserTurn(fmt.Sprintf("q%d", i)))
		_ = store.Append("u1", AssistantTurn(fmt.Sprintf("a%d", i)))
	}

	got, _ := store.Get("u1")
	want := []Turn{
		UserTurn("q2"), AssistantTurn("a2"),
		UserTurn("q3"), AssistantTurn("a3"),
		UserTurn("q4"), AssistantTurn("a4"),
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestInMemoryStore_UserIsolation(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	_ = store.Append("u1", UserTurn("hola"))
	_ = store.Append("u1", AssistantTurn("buenas"))

	before, _ := store.Get("u1")

	for i := 0; i < 10; i++ {
		_ = store.Append("u2", UserTurn(fmt.Sprintf("x%d", i)))
	}

	after, _ := store.Get("u1")
	if fmt.Sprint(before) != fmt.Sprint(after) {
		t.Errorf("u1 history changed by u2 appends: before %v, after %v", before, after)
	}
}

func TestInMemoryStore_GetUnknownUser(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	got, err := store.Get("nobody")
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Get(unknown) = %v, want empty", got)
	}
	if n, _ := store.Len(); n != 0 {
		t.Errorf("Get must not create users, Len() = %d", n)
	}
}

func TestInMemoryStore_GetIsIdempotentAndCopies(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	_ = store.Append("u1", UserTurn("a"))
	_ = store.Append("u1", AssistantTurn("b"))

	first, _ := store.Get("u1")
	first[0].Text = "mutated"

	second, _ := store.Get("u1")
	third, _ := store.Get("u1")
	if second[0].Text != "a" {
		t.Errorf("mutating a returned slice changed the store: %q", second[0].Text)
	}
	if fmt.Sprint(second) != fmt.Sprint(third) {
		t.Errorf("consecutive Get calls differ: %v vs %v", second, third)
	}
}

func TestInMemoryStore_AppendRejectsInvalid(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	if err := store.Append("u1", UserTurn("")); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Append(empty) error = %v, want ErrEmptyText", err)
	}
	if err := store.Append("u1", Turn{Role: "system", Text: "x"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Append(system) error = %v, want ErrInvalidRole", err)
	}
	if n, _ := store.Len(); n != 0 {
		t.Errorf("rejected appends must not create users, Len() = %d", n)
	}
}

func TestInMemoryStore_WithMaxTurns(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(WithMaxTurns(2))
	for _, s := range []string{"a", "b", "c"} {
		_ = store.Append("u1", UserTurn(s))
	}
	got, _ := store.Get("u1")
	if fmt.Sprint(texts(got)) != "[b c]" {
		t.Errorf("Get() = %v, want [b c]", texts(got))
	}
	if store.MaxTurns() != 2 {
		t.Errorf("MaxTurns() = %d, want 2", store.MaxTurns())
	}
}

func TestInMemoryStore_Purge(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()
	_ = store.Append("u1", UserTurn("a"))
	if err := store.Purge("u1"); err != nil {
		t.Fatalf("Purge: unexpected error: %v", err)
	}
	if got, _ := store.Get("u1"); len(got) != 0 {
		t.Errorf("Get after Purge = %v, want empty", got)
	}
	if err := store.Purge("u1"); err != nil {
		t.Errorf("Purge of unknown user should be a no-op, got %v", err)
	}
}

func TestInMemoryStore_Prune(t *testing.T) {
	t.Parallel()

	store, ft := newTestStore()
	_ = store.Append("old", UserTurn("a"))
	ft.Advance(2 * time.Hour)
	_ = store.Append("fresh", UserTurn("b"))
	ft.Advance(30 * time.Minute)

	pruned, err := store.Prune(time.Hour)
	if err != nil {
		t.Fatalf("Prune: unexpected error: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Prune() = %d, want 1", pruned)
	}
	if got, _ := store.Get("old"); len(got) != 0 {
		t.Error("idle user should have been pruned")
	}
	if got, _ := store.Get("fresh"); len(got) != 1 {
		t.Error("active user should survive pruning")
	}
}

func TestInMemoryStore_MaxUsersEvictsLeastRecent(t *testing.T) {
	t.Parallel()

	store, ft := newTestStore(WithMaxUsers(2))
	_ = store.Append("a", UserTurn("1"))
	ft.Advance(time.Minute)
	_ = store.Append("b", UserTurn("1"))
	ft.Advance(time.Minute)
	_ = store.Append("a", UserTurn("2")) // a is now more recent than b
	ft.Advance(time.Minute)
	_ = store.Append("c", UserTurn("1"))

	users, _ := store.Users()
	if len(users) != 2 {
		t.Fatalf("Users() = %v, want 2 entries", users)
	}
	if users[0].UserID != "a" || users[1].UserID != "c" {
		t.Errorf("Users() = %v, want a and c", users)
	}
	if users[0].Turns != 2 {
		t.Errorf("a turns = %d, want 2", users[0].Turns)
	}
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore()

	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("u%d", u)
			for i := 0; i < 50; i++ {
				_ = store.Append(id, UserTurn("x"))
				_, _ = store.Get(id)
			}
		}()
	}
	wg.Wait()

	users, _ := store.Users()
	if len(users) != 8 {
		t.Fatalf("Users() len = %d, want 8", len(users))
	}
	for _, u := range users {
		if u.Turns != DefaultMaxTurns {
			t.Errorf("%s has %d turns, want %d", u.UserID, u.Turns, DefaultMaxTurns)
		}
	}
}
