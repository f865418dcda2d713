package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return NewHub(zerolog.Nop())
}

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := newTestHub()
	client := NewClient([]string{"facility/H001"})

	hub.Register(client)
	if hub.ClientCount() != 1 || hub.TopicCount("facility/H001") != 1 {
		t.Fatalf("clients = %d, topic = %d", hub.ClientCount(), hub.TopicCount("facility/H001"))
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount("facility/H001") != 0 {
		t.Fatalf("clients = %d, topic = %d", hub.ClientCount(), hub.TopicCount("facility/H001"))
	}
	if _, ok := <-client.Send; ok {
		t.Error("expected Send to be closed")
	}
}

func TestHub_PublishReachesOnlySubscribers(t *testing.T) {
	hub := newTestHub()
	h1 := NewClient([]string{"facility/H001"})
	h2 := NewClient([]string{"facility/H002"})
	hub.Register(h1)
	hub.Register(h2)

	err := hub.Publish(context.Background(), Event{
		Type:       "record.queued",
		Topic:      "facility/H001",
		ResourceID: "R00001",
		Timestamp:  time.Now(),
		Data:       json.RawMessage(`{"position":1}`),
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-h1.Send:
		var got Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatal(err)
		}
		if got.Type != "record.queued" || got.ResourceID != "R00001" || string(got.Data) != `{"position":1}` {
			t.Errorf("unexpected event %+v", got)
		}
	default:
		t.Fatal("subscriber received nothing")
	}
	select {
	case msg := <-h2.Send:
		t.Errorf("non-subscriber received %s", msg)
	default:
	}
}

func TestHub_PublishDropsForSlowClient(t *testing.T) {
	hub := newTestHub()
	slow := &Client{ID: "slow", Topics: []string{"t"}, Send: make(chan []byte, 1)}
	hub.Register(slow)

	for i := 0; i < 3; i++ {
		hub.Publish(context.Background(), Event{Type: "x", Topic: "t"})
	}
	if hub.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", hub.Dropped())
	}
}

func TestHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub := newTestHub()
	client := NewClient(nil)
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"facility/H001", "facility/H002", "facility/H001"}})
	if len(client.Topics) != 2 {
		t.Errorf("topics = %v", client.Topics)
	}
	if hub.TopicCount("facility/H001") != 1 || hub.TopicCount("facility/H002") != 1 {
		t.Error("expected one subscriber per topic")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"facility/H001"}})
	if hub.TopicCount("facility/H001") != 0 || hub.TopicCount("facility/H002") != 1 {
		t.Error("unsubscribe removed the wrong topic")
	}
	if len(client.Topics) != 1 || client.Topics[0] != "facility/H002" {
		t.Errorf("topics = %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "shout"})
	if len(client.Topics) != 1 {
		t.Error("unknown action changed subscriptions")
	}
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := newTestHub()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient([]string{"facility/H001"})
			hub.Register(c)
			hub.Publish(context.Background(), Event{Type: "x", Topic: "facility/H001"})
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Errorf("clients = %d", hub.ClientCount())
	}
}

func TestTopicsFromQuery(t *testing.T) {
	got := TopicsFromQuery([]string{"facility/H001, facility/H002", "facility/H001", ""})
	if len(got) != 2 || got[0] != "facility/H001" || got[1] != "facility/H002" {
		t.Errorf("topics = %v", got)
	}
	if TopicsFromQuery(nil) != nil {
		t.Error("expected nil for no values")
	}
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	e := echo.New()
	h := NewHandler(newTestHub(), nil)
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandleConnect(c); err == nil && rec.Code < 400 {
		t.Errorf("expected upgrade failure, got %d", rec.Code)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	NewHandler(hub, []string{"http://clinic.local"}).RegisterRoutes(e)
	server := httptest.NewServer(e)
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
}

func TestHandler_StreamsFacilityEvents(t *testing.T) {
	hub := newTestHub()
	e := echo.New()
	NewHandler(hub, nil).RegisterRoutes(e)
	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topic=facility/H001"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount("facility/H001") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{"facility/H002"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for hub.TopicCount("facility/H002") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscribe message not processed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(context.Background(), Event{Type: "record.claimed", Topic: "facility/H002", ResourceID: "R00007", Timestamp: time.Now()})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "record.claimed" || got.ResourceID != "R00007" {
		t.Errorf("unexpected event %+v", got)
	}
}
