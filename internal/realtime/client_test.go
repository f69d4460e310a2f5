package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func sseServer(t *testing.T, events []string, onConnect func(int)) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		if onConnect != nil {
			onConnect(n)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
		}
		flusher.Flush()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, ch <-chan Change, n int) []Change {
	t.Helper()
	var got []Change
	for len(got) < n {
		select {
		case c := <-ch:
			got = append(got, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for change %d of %d", len(got)+1, n)
		}
	}
	return got
}

func TestDispatchArrivalOrder(t *testing.T) {
	srv := sseServer(t, []string{
		`{"type":"connected"}`,
		`{"table":"care_items","action":"INSERT","id":11}`,
		`{"table":"tasks","action":"UPDATE","id":22}`,
		`{"table":"care_items","action":"UPDATE","id":11}`,
	}, nil)

	client := NewClient(srv.URL, zerolog.Nop(), WithAutoReconnect(false))

	all := make(chan Change, 8)
	client.OnAny(func(c Change) { all <- c })

	careItems := make(chan Change, 8)
	client.OnTable("care_items", func(c Change) { careItems <- c })

	client.Connect(context.Background())
	defer client.Disconnect()

	got := collect(t, all, 3)
	want := []Change{
		{Table: "care_items", Action: "INSERT", ID: 11},
		{Table: "tasks", Action: "UPDATE", ID: 22},
		{Table: "care_items", Action: "UPDATE", ID: 11},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change %d: got %+v, want %+v", i, got[i], want[i])
		}
	}

	tableGot := collect(t, careItems, 2)
	if tableGot[0].Action != "INSERT" || tableGot[1].Action != "UPDATE" {
		t.Errorf("per-table handler got %+v", tableGot)
	}
}

func TestNumericRowIDDispatched(t *testing.T) {
	srv := sseServer(t, []string{`{"table":"tasks","action":"INSERT","id":123}`}, nil)

	client := NewClient(srv.URL, zerolog.Nop(), WithAutoReconnect(false))

	ch := make(chan Change, 1)
	client.OnTable("tasks", func(c Change) { ch <- c })

	client.Connect(context.Background())
	defer client.Disconnect()

	got := collect(t, ch, 1)
	if got[0].ID != 123 {
		t.Errorf("Expected row id 123, got %d", got[0].ID)
	}
}

func TestHousekeepingMessagesNotDispatched(t *testing.T) {
	srv := sseServer(t, []string{
		`{"type":"connected"}`,
		`{"type":"error","message":"replication lag"}`,
		`{"table":"tasks","action":"DELETE","id":3}`,
	}, nil)

	client := NewClient(srv.URL, zerolog.Nop(), WithAutoReconnect(false))

	all := make(chan Change, 8)
	client.OnAny(func(c Change) { all <- c })

	client.Connect(context.Background())
	defer client.Disconnect()

	got := collect(t, all, 1)
	if got[0].Table != "tasks" {
		t.Errorf("Expected only the row change, got %+v", got[0])
	}

	select {
	case extra := <-all:
		t.Errorf("Unexpected extra dispatch: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNoDispatchAfterDisconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; ; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			fmt.Fprintf(w, "data: {\"table\":\"tasks\",\"action\":\"INSERT\",\"id\":%d}\n\n", i)
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zerolog.Nop(), WithReconnectDelay(10*time.Millisecond))

	var mu sync.Mutex
	count := 0
	client.OnAny(func(Change) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	client.Connect(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := count
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for first dispatch")
		}
		time.Sleep(5 * time.Millisecond)
	}

	client.Disconnect()

	mu.Lock()
	after := count
	mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	final := count
	mu.Unlock()

	if final != after {
		t.Errorf("handlers fired after Disconnect: %d then %d", after, final)
	}
	if client.State() != StateDisconnected {
		t.Errorf("Expected disconnected, got %s", client.State())
	}
}

func TestAutoReconnect(t *testing.T) {
	connected := make(chan int, 8)
	srv := sseServer(t, []string{`{"table":"tasks","action":"INSERT","id":9}`},
		func(n int) { connected <- n })

	client := NewClient(srv.URL, zerolog.Nop(), WithReconnectDelay(10*time.Millisecond))
	client.Connect(context.Background())
	defer client.Disconnect()

	for want := 1; want <= 2; want++ {
		select {
		case <-connected:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for connection %d", want)
		}
	}
}

func TestNoReconnectWhenDisabled(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	srv := sseServer(t, nil, func(n int) {
		mu.Lock()
		conns = n
		mu.Unlock()
	})

	client := NewClient(srv.URL, zerolog.Nop(), WithAutoReconnect(false))
	client.Connect(context.Background())
	defer client.Disconnect()

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	n := conns
	mu.Unlock()
	if n != 1 {
		t.Errorf("Expected exactly 1 connection, got %d", n)
	}
	if client.State() != StateDisconnected {
		t.Errorf("Expected disconnected after stream end, got %s", client.State())
	}
}
