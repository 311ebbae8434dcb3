package fhttp

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestTransport(t *testing.T) {
	var gotReferer, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("referer")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("x-test", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	client, err := NewClient(10*time.Second, "")
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("ping"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("referer", "https://suno.com/")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("x-test") != "yes" {
		t.Errorf("header = %q", resp.Header.Get("x-test"))
	}
	if string(b) != "pong" {
		t.Errorf("body = %q", b)
	}
	if gotReferer != "https://suno.com/" || gotBody != "ping" {
		t.Errorf("request referer = %q body = %q", gotReferer, gotBody)
	}
}
