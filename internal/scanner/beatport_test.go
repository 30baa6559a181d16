package scanner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/tekkin/internal/models"
)

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(context.Context, string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestExtractArtistURL(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"href", `<a href="/artist/Nova-Live/123456">Nova</a>`, "https://www.beatport.com/artist/nova-live/123456"},
		{"absolute", `"url":"https://www.beatport.com/artist/cloonee/765432"`, "https://www.beatport.com/artist/cloonee/765432"},
		{"first wins", `/artist/a/1 /artist/b/2`, "https://www.beatport.com/artist/a/1"},
		{"no id", `<a href="/artist/nova">`, ""},
		{"none", `<div>nothing</div>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ExtractArtistURL(tt.html)
			if tt.want == "" {
				if ok {
					t.Fatalf("unexpected match %+v", m)
				}
				return
			}
			if !ok || m.URL != tt.want {
				t.Fatalf("match = %+v, want %s", m, tt.want)
			}
		})
	}
}

func TestFindArtistStatic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Nova Live" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(`<html><a href="/artist/nova-live/42">Nova Live</a></html>`))
	}))
	defer srv.Close()
	r := &fakeRenderer{}
	b := NewBeatport(srv.URL+"/search/artists", r, zerolog.Nop())

	m, err := b.FindArtist(context.Background(), " Nova Live ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m.URL != "https://www.beatport.com/artist/nova-live/42" || m.Source != SourceStatic || m.ID != "42" {
		t.Fatalf("match = %+v", m)
	}
	if r.calls != 0 {
		t.Fatal("renderer should not run when static HTML matches")
	}
}

func TestFindArtistHeadlessFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><div id="__next"></div></html>`))
	}))
	defer srv.Close()
	ctx := context.Background()

	r := &fakeRenderer{html: `<a href="/artist/ghost/7">Ghost</a>`}
	m, err := NewBeatport(srv.URL, r, zerolog.Nop()).FindArtist(ctx, "Ghost")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m.Source != SourceHeadless || m.Slug != "ghost" || r.calls != 1 {
		t.Fatalf("match = %+v calls = %d", m, r.calls)
	}

	if _, err := NewBeatport(srv.URL, nil, zerolog.Nop()).FindArtist(ctx, "Ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("no renderer err = %v", err)
	}
	broken := &fakeRenderer{err: errors.New("no chromium")}
	if _, err := NewBeatport(srv.URL, broken, zerolog.Nop()).FindArtist(ctx, "Ghost"); !errors.Is(err, models.ErrUpstream) {
		t.Fatalf("render failure err = %v", err)
	}
	if _, err := NewBeatport(srv.URL, r, zerolog.Nop()).FindArtist(ctx, "  "); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("blank name err = %v", err)
	}
}
