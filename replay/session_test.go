package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/vod-danmaku/danmaku"
)

// gatedLoader blocks each load until its uuid is released.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	data  map[string][]danmaku.Event
	errs  map[string]error
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{
		gates: map[string]chan struct{}{},
		data:  map[string][]danmaku.Event{},
		errs:  map[string]error{},
	}
}

func (g *gatedLoader) gate(uuid string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[uuid]
	if !ok {
		ch = make(chan struct{})
		g.gates[uuid] = ch
	}
	return ch
}

func (g *gatedLoader) release(uuid string) { close(g.gate(uuid)) }

func (g *gatedLoader) Load(ctx context.Context, uuid string) ([]danmaku.Event, error) {
	select {
	case <-g.gate(uuid):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.data[uuid], g.errs[uuid]
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load")
	}
}

func TestSessionLoadAndUpdate(t *testing.T) {
	g := newGatedLoader()
	g.data["a"] = events(1, 2, 3)
	s := NewSession(g, nil, WithCap(2))
	defer s.Close()

	done := s.Navigate(context.Background(), "a")
	if st := s.State(); !st.Loading || st.UUID != "a" {
		t.Errorf("state while loading = %+v", st)
	}
	if w, scroll := s.Update(10); scroll || len(w.Events) != 0 {
		t.Errorf("Update before load = %+v, %v", w, scroll)
	}
	g.release("a")
	wait(t, done)

	st := s.State()
	if st.Loading || st.Err != nil || st.Events != 3 {
		t.Errorf("state after load = %+v", st)
	}
	w, scroll := s.Update(10)
	if !scroll || w.Start != 1 || w.End != 3 {
		t.Errorf("Update(10) = %+v, %v", w, scroll)
	}
}

func TestSessionMissingChatIsEmpty(t *testing.T) {
	g := newGatedLoader()
	g.release("none")
	s := NewSession(g, nil)
	defer s.Close()
	wait(t, s.Navigate(context.Background(), "none"))
	st := s.State()
	if st.Loading || st.Err != nil || st.Events != 0 {
		t.Errorf("state = %+v, want loaded and empty", st)
	}
	if got := s.Browse(); got == nil || len(got) != 0 {
		t.Errorf("Browse() = %#v", got)
	}
}

func TestSessionLoadError(t *testing.T) {
	g := newGatedLoader()
	boom := errors.New("boom")
	g.errs["bad"] = boom
	g.release("bad")
	s := NewSession(g, nil)
	defer s.Close()
	wait(t, s.Navigate(context.Background(), "bad"))
	st := s.State()
	if st.Loading || !errors.Is(st.Err, boom) {
		t.Errorf("state = %+v, want error", st)
	}
}

func TestSessionDiscardsStaleLoad(t *testing.T) {
	g := newGatedLoader()
	g.data["old"] = events(1, 2, 3, 4)
	g.data["new"] = events(5)
	s := NewSession(g, nil)
	defer s.Close()

	oldDone := s.Navigate(context.Background(), "old")
	newDone := s.Navigate(context.Background(), "new")
	// old load was cancelled by the second navigation
	wait(t, oldDone)
	if st := s.State(); st.UUID != "new" || !st.Loading {
		t.Errorf("stale load leaked into state: %+v", st)
	}
	g.release("new")
	wait(t, newDone)
	if st := s.State(); st.UUID != "new" || st.Events != 1 || st.Err != nil {
		t.Errorf("state = %+v", st)
	}
}

func TestSessionIgnoresLoaderThatIgnoresCancel(t *testing.T) {
	release := make(chan struct{})
	loader := LoaderFunc(func(ctx context.Context, uuid string) ([]danmaku.Event, error) {
		if uuid == "slow" {
			<-release
			return events(1, 2, 3), nil
		}
		return events(9), nil
	})
	s := NewSession(loader, nil)
	defer s.Close()

	slow := s.Navigate(context.Background(), "slow")
	wait(t, s.Navigate(context.Background(), "fast"))
	close(release)
	wait(t, slow)
	if st := s.State(); st.UUID != "fast" || st.Events != 1 {
		t.Errorf("late result overwrote newer video: %+v", st)
	}
}

func TestSessionSeekAndSearch(t *testing.T) {
	var sought []float64
	loader := LoaderFunc(func(ctx context.Context, uuid string) ([]danmaku.Event, error) {
		return []danmaku.Event{
			{ID: 0, Kind: danmaku.KindMessage, Timestamp: 9, Content: "late hi"},
			{ID: 1, Kind: danmaku.KindMessage, Timestamp: 1, Content: "early hi"},
			{ID: 2, Kind: danmaku.KindMessage, Timestamp: 5, Content: "bye"},
		}, nil
	})
	s := NewSession(loader, func(ts float64) { sought = append(sought, ts) })
	defer s.Close()
	wait(t, s.Navigate(context.Background(), "v"))

	got := s.Search("hi")
	if len(got) != 2 || got[0].ID != 0 || got[1].ID != 1 {
		t.Errorf("Search(hi) = %+v, want document order", got)
	}
	browse := s.Browse()
	if browse[0].ID != 1 || browse[2].ID != 0 {
		t.Errorf("Browse() not time ordered: %+v", browse)
	}
	s.Seek(got[1].Timestamp)
	if len(sought) != 1 || sought[0] != 1 {
		t.Errorf("seek calls = %v", sought)
	}
}

func TestSessionModeCarriesAcrossLoads(t *testing.T) {
	loader := LoaderFunc(func(ctx context.Context, uuid string) ([]danmaku.Event, error) {
		return events(1, 2), nil
	})
	s := NewSession(loader, nil)
	defer s.Close()
	s.SetMode(ModeBrowsing)
	wait(t, s.Navigate(context.Background(), "v"))
	if _, scroll := s.Update(5); scroll {
		t.Error("browsing session scrolled")
	}
	s.SetMode(ModeFollowing)
	if w, scroll := s.Update(5); !scroll || w.End != 2 {
		t.Errorf("following Update = %+v, %v", w, scroll)
	}
	if s.State().Mode != ModeFollowing {
		t.Error("mode not reported")
	}
}

func TestSessionCloseCancelsLoad(t *testing.T) {
	g := newGatedLoader()
	s := NewSession(g, nil)
	done := s.Navigate(context.Background(), "never")
	s.Close()
	wait(t, done)
	if st := s.State(); st.Events != 0 || st.Loading {
		t.Errorf("state after Close = %+v", st)
	}
}

func TestSessionCloseDropsLoadedVideo(t *testing.T) {
	g := newGatedLoader()
	g.data["v1"] = events(1, 2, 3)
	g.release("v1")
	s := NewSession(g, nil)
	wait(t, s.Navigate(context.Background(), "v1"))
	if w, _ := s.Update(10); len(w.Events) != 3 {
		t.Fatalf("window before Close = %d events, want 3", len(w.Events))
	}

	s.Close()
	if w, scroll := s.Update(10); len(w.Events) != 0 || scroll {
		t.Errorf("Update after Close = %+v scroll=%v, want empty", w, scroll)
	}
	if got := s.Browse(); len(got) != 0 {
		t.Errorf("Browse after Close = %d events", len(got))
	}
	if got := s.Search(""); len(got) != 0 {
		t.Errorf("Search after Close = %d events", len(got))
	}
	if st := s.State(); st.Events != 0 {
		t.Errorf("state after Close = %+v", st)
	}
}
