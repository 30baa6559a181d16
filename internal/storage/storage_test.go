package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/cache"
)

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"tracks/p1/a.wav": "p1/a.wav",
		"/p1/a.wav":       "p1/a.wav",
		"  p1/a.wav ":     "p1/a.wav",
		"tracks//x.wav":   "x.wav",
		"":                "",
	}
	for in, want := range tests {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestTrackKey(t *testing.T) {
	key := TrackKey("proj", "My Song.MP3")
	if !strings.HasPrefix(key, "proj/") || !strings.HasSuffix(key, ".mp3") {
		t.Fatalf("key=%q", key)
	}
	if !strings.HasSuffix(TrackKey("proj", "noext"), ".wav") {
		t.Fatal("missing extension should default to wav")
	}
}

func TestFilesystemBackend_SignAndServe(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystemBackend(dir, "http://localhost:8080/", "secret", zerolog.Nop())
	svc := New(fs, zerolog.Nop())
	ctx := context.Background()

	key, err := svc.Upload(ctx, "p1", "take.wav", "", bytes.NewBufferString("RIFF"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	link, err := svc.Sign(ctx, "tracks/"+key, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(link, "http://localhost:8080/media/"+key+"?") {
		t.Fatalf("link=%q", link)
	}

	u, _ := url.Parse(link)
	rec := httptest.NewRecorder()
	fs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "RIFF" {
		t.Fatalf("serve: %d %q", rec.Code, rec.Body.String())
	}

	q := u.Query()
	q.Set("sig", strings.Repeat("0", 64))
	rec = httptest.NewRecorder()
	fs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.Path+"?"+q.Encode(), nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tampered signature served: %d", rec.Code)
	}

	fs.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if err := fs.Verify(key, u.Query().Get("exp"), u.Query().Get("sig")); err != ErrBadSignature {
		t.Fatalf("expired link verified: %v", err)
	}

	if err := svc.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestFilesystemBackend_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	fs := NewFilesystemBackend(dir, "", "s", zerolog.Nop())
	full, err := fs.fullPath("../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(full, dir) {
		t.Fatalf("path escaped root: %s", full)
	}
}

type countingBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *countingBackend) Put(context.Context, string, io.Reader, string) error { return nil }
func (b *countingBackend) Delete(context.Context, string) error                 { return nil }
func (b *countingBackend) CheckAccess(context.Context) error                    { return nil }
func (b *countingBackend) SignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return fmt.Sprintf("https://signed/%s?n=%d", key, b.calls), nil
}

func TestURLCache_FirstWriteWins(t *testing.T) {
	backend := &countingBackend{}
	c := NewURLCache(New(backend, zerolog.Nop()), cache.Disabled(zerolog.Nop()), 30*time.Minute, 10*time.Minute, zerolog.Nop())
	ctx := context.Background()

	first, err := c.Get(ctx, "v1", "p/a.wav")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Get(ctx, "v1", "p/a.wav")
			if err != nil || got.URL != first.URL {
				t.Errorf("got %q err %v, want %q", got.URL, err, first.URL)
			}
		}()
	}
	wg.Wait()

	if backend.calls != 1 {
		t.Fatalf("signed %d times, want 1", backend.calls)
	}
	if n := cachedEntries(c); n != 1 {
		t.Fatalf("entries=%d", n)
	}
}

func cachedEntries(c *URLCache) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func TestURLCache_Revalidates(t *testing.T) {
	backend := &countingBackend{}
	c := NewURLCache(New(backend, zerolog.Nop()), nil, 30*time.Minute, 10*time.Minute, zerolog.Nop())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }
	ctx := context.Background()

	first, _ := c.Get(ctx, "v1", "p/a.wav")
	if !first.RevalidateAt.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("revalidateAt=%v", first.RevalidateAt)
	}

	c.now = func() time.Time { return base.Add(11 * time.Minute) }
	second, _ := c.Get(ctx, "v1", "p/a.wav")
	if second.URL == first.URL || backend.calls != 2 {
		t.Fatalf("expected a re-sign, calls=%d", backend.calls)
	}

	c.Invalidate(ctx, "v1")
	if cachedEntries(c) != 0 {
		t.Fatal("invalidate kept the entry")
	}
}

func TestURLCache_RevalidateCappedByExpiry(t *testing.T) {
	c := NewURLCache(New(&countingBackend{}, zerolog.Nop()), nil, 8*time.Second, time.Minute, zerolog.Nop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := c.revalidateAt(now, now.Add(8*time.Second)); !got.Equal(now.Add(3 * time.Second)) {
		t.Fatalf("revalidateAt=%v", got)
	}
}
