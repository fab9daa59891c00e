package job

import (
	"context"
	"testing"
	"time"

	"romdock/internal/testutil"
)

func newTestRegistry() *Registry {
	return NewRegistry(200*time.Millisecond, nil)
}

func TestCreateDuplicate(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindExtract); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := r.Create("j1", KindVerify); err == nil {
		t.Fatal("duplicate Create should fail")
	}
}

func TestPublishUnknownJobIsNoop(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	// Must not panic or error: disconnect races hit this path.
	r.Publish("missing", EventLog, LogPayload{Message: "hello"})
	r.Resolve("missing", true)
}

func TestStreamOrderAndTerminal(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindVerify); err != nil {
		t.Fatal(err)
	}

	r.Publish("j1", EventLog, LogPayload{Message: "one"})
	r.Publish("j1", EventProgress, ProgressPayload{Step: "step", Current: 1, Total: 2})
	r.Publish("j1", EventComplete, LogPayload{Message: "done"})
	// Nothing may follow a terminal event.
	r.Publish("j1", EventLog, LogPayload{Message: "late"})

	st, err := r.Consume("j1")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	var got []EventType
	for ev := range st.Events() {
		got = append(got, ev.Type)
		if ev.Type.Terminal() {
			break
		}
	}
	want := []EventType{EventLog, EventProgress, EventComplete}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResolveFirstReplyWins(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindCompress); err != nil {
		t.Fatal(err)
	}
	st, err := r.Consume("j1")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	result := make(chan bool, 1)
	go func() {
		result <- r.RequestConfirmation(context.Background(), "j1", ConfirmCompress{Filename: "a.nsp"})
	}()

	// Wait for the confirm_request to be published.
	ev := <-st.Events()
	if ev.Type != EventConfirmRequest {
		t.Fatalf("first event = %s, want confirm_request", ev.Type)
	}

	r.Resolve("j1", true)
	r.Resolve("j1", false) // late duplicate, must be ignored

	if got := <-result; !got {
		t.Error("first reply was true; RequestConfirmation returned false")
	}
}

func TestConfirmationTimeoutDeclines(t *testing.T) {
	t.Parallel()
	r := NewRegistry(50*time.Millisecond, nil)
	if err := r.Create("j1", KindCompress); err != nil {
		t.Fatal(err)
	}
	st, err := r.Consume("j1")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	start := time.Now()
	if got := r.RequestConfirmation(context.Background(), "j1", nil); got {
		t.Error("timed-out confirmation should decline")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("confirmation wait was not bounded")
	}
}

func TestConfirmationNoTransportDeclinesInstantly(t *testing.T) {
	t.Parallel()
	r := NewRegistry(time.Hour, nil)
	if err := r.Create("j1", KindCompress); err != nil {
		t.Fatal(err)
	}

	done := make(chan bool, 1)
	go func() {
		done <- r.RequestConfirmation(context.Background(), "j1", nil)
	}()
	select {
	case got := <-done:
		if got {
			t.Error("confirmation with no transport should decline")
		}
	case <-time.After(time.Second):
		t.Fatal("RequestConfirmation hung with no transport attached")
	}
}

func TestDetachLastTransportDeclinesConfirmation(t *testing.T) {
	t.Parallel()
	r := NewRegistry(time.Hour, nil)
	if err := r.Create("j1", KindOrganize); err != nil {
		t.Fatal(err)
	}
	conn, err := r.Attach("j1")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan bool, 1)
	go func() {
		done <- r.RequestConfirmation(context.Background(), "j1", nil)
	}()

	// Wait until the confirm_request reaches the push connection.
	select {
	case ev := <-conn.Events():
		if ev.Type != EventConfirmRequest {
			t.Fatalf("push event = %s, want confirm_request", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("confirm_request never reached push connection")
	}

	r.Detach(conn)

	select {
	case got := <-done:
		if got {
			t.Error("detaching last transport should decline the confirmation")
		}
	case <-time.After(time.Second):
		t.Fatal("confirmation did not resolve after last transport detached")
	}
}

func TestPushConnReceivesPublishedEvents(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindExtract); err != nil {
		t.Fatal(err)
	}
	conn, err := r.Attach("j1")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Detach(conn)

	r.Publish("j1", EventLog, LogPayload{Message: "a"})
	r.Publish("j1", EventComplete, LogPayload{Message: "b"})

	first := <-conn.Events()
	if first.Type != EventLog {
		t.Errorf("first push event = %s, want log", first.Type)
	}
	second := <-conn.Events()
	if second.Type != EventComplete {
		t.Errorf("second push event = %s, want complete", second.Type)
	}
}

func TestJobDeletedAfterStreamClose(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindVerify); err != nil {
		t.Fatal(err)
	}
	r.Publish("j1", EventComplete, LogPayload{Message: "done"})

	st, err := r.Consume("j1")
	if err != nil {
		t.Fatal(err)
	}
	<-st.Events()
	st.Close()

	if _, ok := r.Info("j1"); ok {
		t.Error("job should be removed after its stream closes")
	}
	// The ID is free for reuse now.
	if err := r.Create("j1", KindVerify); err != nil {
		t.Errorf("Create after cleanup: %v", err)
	}
}

func TestJobDeletedAfterPushOnlyDelivery(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindExtract); err != nil {
		t.Fatal(err)
	}
	conn, err := r.Attach("j1")
	if err != nil {
		t.Fatal(err)
	}

	// No pull stream ever attaches; the terminal event reaches the
	// push connection alone.
	r.Publish("j1", EventComplete, LogPayload{Message: "done"})
	ev := <-conn.Events()
	if ev.Type != EventComplete {
		t.Fatalf("push event = %s, want complete", ev.Type)
	}

	r.Detach(conn)
	if _, ok := r.Info("j1"); ok {
		t.Error("job should be removed after terminal delivery to a push-only client")
	}
	if err := r.Create("j1", KindExtract); err != nil {
		t.Errorf("Create after cleanup: %v", err)
	}
}

func TestStreamCloseKeepsJobWhilePushAttached(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindVerify); err != nil {
		t.Fatal(err)
	}
	conn, err := r.Attach("j1")
	if err != nil {
		t.Fatal(err)
	}

	st, err := r.Consume("j1")
	if err != nil {
		t.Fatal(err)
	}
	r.Publish("j1", EventComplete, LogPayload{Message: "done"})
	<-st.Events()
	st.Close()

	if _, ok := r.Info("j1"); !ok {
		t.Fatal("job must survive while a push connection is attached")
	}

	r.Detach(conn)
	testutil.MustEventually(t, time.Second, func() bool {
		_, ok := r.Info("j1")
		return !ok
	})
}

func TestSlowPullReaderNeverBlocksPublisher(t *testing.T) {
	t.Parallel()
	r := newTestRegistry()
	if err := r.Create("j1", KindExtract); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Consume("j1"); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*3; i++ {
			r.Publish("j1", EventProgress, ProgressPayload{Current: int64(i)})
		}
		r.Publish("j1", EventComplete, LogPayload{Message: "done"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow consumer")
	}
}
