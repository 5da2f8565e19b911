package synthesis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func synthHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("path = %q, want /synthesize", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req synthesizeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := synthesizeResponse{
			Audio:      base64.StdEncoding.EncodeToString(make([]byte, 4)),
			SampleRate: 22050,
			Words: []wordEntry{
				{Text: "hello", Start: 0, Duration: 0.4},
				{Text: "world", Start: 0.4, Duration: 0.5},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestClientSynthesize(t *testing.T) {
	backend := httptest.NewServer(synthHandler(t))
	defer backend.Close()

	c := NewClient(backend.URL)
	clip, err := c.Synthesize(context.Background(), "hello world", "emma", 1.0)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if clip.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", clip.SampleRate)
	}
	if len(clip.Timings) != 2 {
		t.Fatalf("len(Timings) = %d, want 2", len(clip.Timings))
	}
	if clip.Timings[1].Text != "world" {
		t.Errorf("Timings[1].Text = %q, want %q", clip.Timings[1].Text, "world")
	}
	if clip.Timings[1].Start != 400*time.Millisecond {
		t.Errorf("Timings[1].Start = %v, want 400ms", clip.Timings[1].Start)
	}
	if clip.Timings[1].End() != 900*time.Millisecond {
		t.Errorf("Timings[1].End() = %v, want 900ms", clip.Timings[1].End())
	}
}

func TestClientSynthesizeDefaultsSampleRate(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(synthesizeResponse{
			Audio: base64.StdEncoding.EncodeToString(make([]byte, 4)),
		})
	}))
	defer backend.Close()

	c := NewClient(backend.URL)
	clip, err := c.Synthesize(context.Background(), "hi", "emma", 1.0)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if clip.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want 44100 default", clip.SampleRate)
	}
}

func TestClientSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantErr: ErrBackendUnavailable,
		},
		{
			name: "empty audio",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(synthesizeResponse{Audio: ""})
			},
			wantErr: ErrEmptyAudio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := httptest.NewServer(tt.handler)
			defer backend.Close()

			c := NewClient(backend.URL)
			if _, err := c.Synthesize(context.Background(), "hi", "emma", 1.0); !errors.Is(err, tt.wantErr) {
				t.Errorf("Synthesize() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientPrepare(t *testing.T) {
	var gotID string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prepare" {
			t.Errorf("path = %q, want /prepare", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req synthesizeRequest
		json.Unmarshal(body, &req)
		gotID = req.ArticleID
		w.Write([]byte("{}"))
	}))
	defer backend.Close()

	c := NewClient(backend.URL)
	if err := c.Prepare(context.Background(), "article-7", "hello", "emma", 1.0); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if gotID != "article-7" {
		t.Errorf("articleId = %q, want %q", gotID, "article-7")
	}
}
