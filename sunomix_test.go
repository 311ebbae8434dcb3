package sunomix

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sunomix/sunomix/pkg/minimax"
	"github.com/sunomix/sunomix/pkg/retry"
	"github.com/sunomix/sunomix/pkg/suno"
)

func TestCredentials(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		envKey    string
		envGroup  string
		wantKey   string
		wantGroup string
		wantErr   bool
	}{
		{name: "flags", cfg: Config{MinimaxKey: "k", MinimaxGroup: "g"}, envKey: "ek", envGroup: "eg", wantKey: "k", wantGroup: "g"},
		{name: "env", envKey: "ek", envGroup: "eg", wantKey: "ek", wantGroup: "eg"},
		{name: "mixed", cfg: Config{MinimaxKey: "k"}, envGroup: "eg", wantKey: "k", wantGroup: "eg"},
		{name: "missing group", cfg: Config{MinimaxKey: "k"}, wantErr: true},
		{name: "missing key", cfg: Config{MinimaxGroup: "g"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MINIMAX_API_KEY", tt.envKey)
			t.Setenv("MINIMAX_GROUP_ID", tt.envGroup)
			key, group, err := tt.cfg.Credentials()
			if tt.wantErr {
				if err == nil {
					t.Fatal("err = nil; want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if key != tt.wantKey || group != tt.wantGroup {
				t.Errorf("got %q %q; want %q %q", key, group, tt.wantKey, tt.wantGroup)
			}
		})
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("MINIMAX_API_KEY", "")
	t.Setenv("MINIMAX_GROUP_ID", "")
	if _, err := New(&Config{Output: t.TempDir()}); err == nil {
		t.Fatal("err = nil; want error")
	}
}

func TestNew(t *testing.T) {
	cfg := &Config{
		MinimaxKey:   "k",
		MinimaxGroup: "g",
		Output:       t.TempDir(),
		Downloads:    t.TempDir(),
	}
	app, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if app.Store.Root() != cfg.Output {
		t.Errorf("store root = %q; want %q", app.Store.Root(), cfg.Output)
	}
	if app.Client == nil || app.Pipeline == nil || app.Fetcher == nil || app.Polisher == nil || app.Generator == nil {
		t.Errorf("app not fully wired: %+v", app)
	}
}

func TestRetryPolicy(t *testing.T) {
	p := (&Config{}).RetryPolicy()
	if p.Attempts != retry.Default().Attempts {
		t.Errorf("attempts = %d", p.Attempts)
	}
	if p.Retryable != nil {
		t.Error("retryable set; want timeouts only")
	}
	if len(p.Backoff) != 0 {
		t.Errorf("backoff = %v; want none", p.Backoff)
	}

	p = (&Config{Retries: 5, RetryWait: time.Second, RetryTransient: true}).RetryPolicy()
	if p.Attempts != 5 {
		t.Errorf("attempts = %d; want 5", p.Attempts)
	}
	if len(p.Backoff) == 0 || p.Backoff[0] != time.Second {
		t.Errorf("backoff = %v", p.Backoff)
	}
	if p.Retryable == nil || !p.Retryable(&minimax.StatusError{Code: 503}) {
		t.Error("503 not retryable with transient retries")
	}
	if p.Retryable(errors.New("boom")) {
		t.Error("plain error retryable")
	}
}

func TestDownloadRetryPolicy(t *testing.T) {
	cfg := &Config{Retries: 4, RetryWait: time.Second, RetryTransient: true}
	p := cfg.DownloadRetryPolicy()
	if p.Attempts != 4 {
		t.Errorf("attempts = %d; want 4", p.Attempts)
	}
	if len(p.Backoff) == 0 || p.Backoff[0] != time.Second {
		t.Errorf("backoff = %v", p.Backoff)
	}
	if p.Retryable != nil {
		t.Error("retryable set; want timeouts only")
	}
	var calls int
	err := p.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		return &suno.StatusError{Code: 503}
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d err = %v; want 1 call and an error", calls, err)
	}
}

func TestSeparate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"status":"success","voice_id":"v1","instrumental_id":"i1"}`))
	}))
	defer srv.Close()

	cfg := &Config{
		MinimaxKey:   "k",
		MinimaxGroup: "g",
		MinimaxURL:   srv.URL,
		Output:       t.TempDir(),
	}
	if err := Separate(context.Background(), cfg, "file-1"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v1/music_upload/separate" {
		t.Errorf("path = %q", gotPath)
	}
}
