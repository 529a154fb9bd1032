package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

// recv waits for the next frame on ch.
func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return ""
}

// drain collects whatever is buffered on ch right now.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

// settle waits until every event published so far has been sequenced.
func settle(t *testing.T, b *Broker) {
	t.Helper()
	probe := b.Subscribe()
	defer b.Unsubscribe(probe)
	b.Publish(Event{Type: "probe", Data: 0})
	recv(t, probe)
}

func countType(frames []string, typ string) (n int, last string) {
	for _, f := range frames {
		if strings.Contains(f, "event: "+typ+"\n") {
			n++
			last = f
		}
	}
	return n, last
}

func TestClientCount(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount = %d, want 0", n)
	}
	a := b.Subscribe()
	c := b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("ClientCount = %d, want 2", n)
	}
	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("unsubscribed channel should be closed")
	}
	b.Unsubscribe(c)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d after unsubscribe, want 0", n)
	}
}

func TestPublish_FrameFormat(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "upload.progress", Data: map[string]int{"index": 1, "total": 3}})
	b.Publish(Event{Type: "upload.progress", Data: map[string]int{"index": 2, "total": 3}})

	first := recv(t, ch)
	want := "id: 1\nevent: upload.progress\ndata: {\"index\":1,\"total\":3}\n\n"
	if first != want {
		t.Errorf("frame = %q, want %q", first, want)
	}
	if second := recv(t, ch); !strings.HasPrefix(second, "id: 2\n") {
		t.Errorf("second frame = %q, want id 2", second)
	}
}

func TestPublish_UnencodableDataSkipped(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "bad", Data: func() {}})
	b.Publish(Event{Type: "good", Data: 1})

	if got := recv(t, ch); !strings.Contains(got, "event: good") || !strings.HasPrefix(got, "id: 1\n") {
		t.Errorf("frame = %q, want the good event with id 1", got)
	}
}

func TestSummary_LeadingAndTrailing(t *testing.T) {
	b := NewBroker(WithSummaryThrottle(150 * time.Millisecond))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	two := models.Snapshot{Books: []models.Book{{ID: "b1"}, {ID: "b2"}}}
	three := models.Snapshot{Books: []models.Book{{ID: "b1"}, {ID: "b2"}, {ID: "b3"}}, Quotes: []models.Quote{{ID: "q"}}}

	b.LibraryChanged(library.Change{Kind: library.BookAdded, ID: "b2"}, two)
	b.LibraryChanged(library.Change{Kind: library.BookAdded, ID: "b3"}, three)

	time.Sleep(50 * time.Millisecond)
	early := drain(ch)
	if n, _ := countType(early, library.BookAdded); n != 2 {
		t.Errorf("book.added events = %d, want 2", n)
	}
	n, summary := countType(early, SummaryEvent)
	if n != 1 {
		t.Fatalf("summaries inside the window = %d, want 1", n)
	}
	if !strings.Contains(summary, `"books":2`) {
		t.Errorf("leading summary = %q", summary)
	}

	trailing := recv(t, ch)
	if !strings.Contains(trailing, "event: "+SummaryEvent) {
		t.Fatalf("expected trailing summary, got %q", trailing)
	}
	if !strings.Contains(trailing, `"books":3`) || !strings.Contains(trailing, `"quotes":1`) {
		t.Errorf("trailing summary should carry the latest counts: %q", trailing)
	}

	time.Sleep(200 * time.Millisecond)
	if extra := drain(ch); len(extra) != 0 {
		t.Errorf("unexpected extra events %q", extra)
	}
}

func TestLibraryChanged_FromStore(t *testing.T) {
	b := NewBroker(WithSummaryThrottle(time.Millisecond))
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	store := library.New()
	store.Subscribe(b)
	book := store.AddBook(models.ParsedBook{Title: "Emma", Format: models.FormatTXT})

	got := recv(t, ch)
	if !strings.Contains(got, "event: book.added") || !strings.Contains(got, book.ID) {
		t.Errorf("first event = %q", got)
	}
}

func TestSettingsChanged(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.SettingsChanged(models.Settings{ReadingMode: models.ReadingModeSepia})

	got := recv(t, ch)
	if !strings.Contains(got, "event: settings.updated") || !strings.Contains(got, `"readingMode":"sepia"`) {
		t.Errorf("settings event = %q", got)
	}
}

func TestSubscribeFrom_Replays(t *testing.T) {
	b := NewBroker(WithReplay(2))
	defer b.Close()
	live := b.Subscribe()
	defer b.Unsubscribe(live)

	for _, typ := range []string{"a", "b", "c"} {
		b.Publish(Event{Type: typ, Data: typ})
	}
	for range 3 {
		recv(t, live)
	}

	// Only ids 2 and 3 are retained; resuming after 1 sees both.
	late := b.SubscribeFrom(1)
	defer b.Unsubscribe(late)
	if got := recv(t, late); !strings.HasPrefix(got, "id: 2\nevent: b\n") {
		t.Errorf("first replay = %q", got)
	}
	if got := recv(t, late); !strings.HasPrefix(got, "id: 3\nevent: c\n") {
		t.Errorf("second replay = %q", got)
	}

	current := b.SubscribeFrom(3)
	defer b.Unsubscribe(current)
	if got := drain(current); len(got) != 0 {
		t.Errorf("up-to-date client got replay %q", got)
	}
}

func TestServeHTTP_StreamsAndCleansUp(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	b.Publish(Event{Type: "book.added", Data: "old"})
	settle(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "0")
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want 1", n)
	}

	b.Publish(Event{Type: "book.updated", Data: library.Change{Kind: library.BookUpdated, ID: "x"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: book.updated\n") {
		t.Errorf("body missing live event: %q", body)
	}
	if strings.Contains(body, `"old"`) {
		t.Errorf("Last-Event-ID 0 should not replay: %q", body)
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d after disconnect", n)
	}
}

func TestServeHTTP_ResumesFromLastEventID(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	b.Publish(Event{Type: "book.added", Data: "first"})
	b.Publish(Event{Type: "book.added", Data: "second"})

	settle(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "1")
	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if strings.Contains(body, `"first"`) || !strings.Contains(body, `"second"`) {
		t.Errorf("resume body = %q", body)
	}
}

func TestServeHTTP_Heartbeat(t *testing.T) {
	b := NewBroker(WithHeartbeat(10 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping\n\n") {
		t.Errorf("no heartbeat in %q", w.Body.String())
	}
}

func TestClose(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d after close", n)
	}

	if _, ok := <-b.Subscribe(); ok {
		t.Error("Subscribe after close should return a closed channel")
	}
	b.Publish(Event{Type: "book.updated", Data: "x"})
	b.LibraryChanged(library.Change{Kind: library.BookUpdated, ID: "x"}, models.Snapshot{})
	b.SettingsChanged(models.Settings{})
}
