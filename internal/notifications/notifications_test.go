package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/tekkin/internal/auth"
	"github.com/friendsincode/tekkin/internal/events"
	"github.com/friendsincode/tekkin/internal/models"
)

func newTestService(t *testing.T) (*Service, *events.Bus) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Notification{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	bus := events.NewBus()
	return NewService(db, bus, zerolog.Nop()), bus
}

func TestNotify_InsertsAndPublishes(t *testing.T) {
	svc, bus := newTestService(t)
	sub := bus.Subscribe(events.EventNotificationCreated)
	ctx := context.Background()

	n, err := svc.Notify(ctx, Notification{UserID: "u1", Type: models.NotificationTrackLiked, Title: "New like"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.ID == "" {
		t.Fatal("expected an id")
	}

	select {
	case p := <-sub:
		if p.String("user_id") != "u1" || p.String("id") != n.ID {
			t.Fatalf("payload=%v", p)
		}
	default:
		t.Fatal("notification.created not published")
	}

	if _, err := svc.Notify(ctx, Notification{Type: models.NotificationTrackLiked}); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("missing user: %v", err)
	}
}

func TestUnreadAndMarkRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.Notify(ctx, Notification{UserID: "u1", Type: models.NotificationSignalReceived, Title: "a"})
	svc.Notify(ctx, Notification{UserID: "u1", Type: models.NotificationSignalReceived, Title: "b"})
	svc.Notify(ctx, Notification{UserID: "u2", Type: models.NotificationSignalReceived, Title: "c"})

	if n, _ := svc.UnreadCount(ctx, "u1"); n != 2 {
		t.Fatalf("unread=%d want 2", n)
	}

	if err := svc.MarkRead(ctx, "u2", first.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("foreign mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, "u1", first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if err := svc.MarkRead(ctx, "u1", first.ID); err != nil {
		t.Fatalf("second mark read should succeed: %v", err)
	}
	if n, _ := svc.UnreadCount(ctx, "u1"); n != 1 {
		t.Fatalf("unread=%d want 1", n)
	}

	if err := svc.MarkAllRead(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if n, _ := svc.UnreadCount(ctx, "u1"); n != 0 {
		t.Fatalf("unread=%d want 0", n)
	}
	if n, _ := svc.UnreadCount(ctx, "u2"); n != 1 {
		t.Fatalf("other user touched: %d", n)
	}

	rows, err := svc.List(ctx, "u1", 0)
	if err != nil || len(rows) != 2 {
		t.Fatalf("list=%d err=%v", len(rows), err)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 30, -3: 30, 10: 10, 50: 50, 500: 50} {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d)=%d want %d", in, got, want)
		}
	}
}

func readUnread(t *testing.T, ctx context.Context, conn *ws.Conn) UnreadMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg UnreadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func TestHub_StreamsUnreadCount(t *testing.T) {
	svc, bus := newTestService(t)
	hub := NewHub(svc, bus, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{UserID: "u1"}))
		hub.ServeHTTP(w, r)
	}))
	defer srv.Close()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	if msg := readUnread(t, ctx, conn); msg.Type != "unread" || msg.Unread != 0 {
		t.Fatalf("initial=%+v", msg)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.SessionCount("u1") == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := svc.Notify(ctx, Notification{UserID: "u1", Type: models.NotificationTrackLiked, Title: "like"}); err != nil {
		t.Fatal(err)
	}
	if msg := readUnread(t, ctx, conn); msg.Unread != 1 {
		t.Fatalf("after notify=%+v", msg)
	}
}

func TestHub_RejectsAnonymous(t *testing.T) {
	svc, bus := newTestService(t)
	hub := NewHub(svc, bus, nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, auth.StreamPath, nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestOriginPatterns(t *testing.T) {
	got := OriginPatterns([]string{"https://app.tekkin.test", " *.tekkin.dev ", "", "http://localhost:3000"})
	want := []string{"app.tekkin.test", "*.tekkin.dev", "localhost:3000"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("patterns=%v want %v", got, want)
	}
}

func TestHub_ChecksOrigin(t *testing.T) {
	svc, bus := newTestService(t)
	hub := NewHub(svc, bus, []string{"https://app.tekkin.test"}, zerolog.Nop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(auth.WithClaims(r.Context(), &auth.Claims{UserID: "u1"}))
		hub.ServeHTTP(w, r)
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	tests := []struct {
		origin string
		ok     bool
	}{
		{"https://app.tekkin.test", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			conn, resp, err := ws.Dial(ctx, wsURL, &ws.DialOptions{HTTPHeader: http.Header{"Origin": {tt.origin}}})
			if tt.ok {
				if err != nil {
					t.Fatalf("dial: %v", err)
				}
				conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err == nil {
				conn.Close(ws.StatusNormalClosure, "")
				t.Fatal("expected a rejected handshake")
			}
			if resp == nil || resp.StatusCode != http.StatusForbidden {
				t.Fatalf("resp=%v err=%v", resp, err)
			}
		})
	}
}
