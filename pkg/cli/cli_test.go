package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestReadLyrics(t *testing.T) {
	file := filepath.Join(t.TempDir(), "lyrics.txt")
	if err := os.WriteFile(file, []byte("from file"), 0644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name     string
		text     string
		file     string
		optional bool
		want     string
		wantErr  bool
	}{
		{name: "flag", text: "hello", want: "hello"},
		{name: "file", file: file, want: "from file"},
		{name: "both", text: "hello", file: file, wantErr: true},
		{name: "empty", text: "  ", wantErr: true},
		{name: "empty optional", text: "  ", optional: true, want: ""},
		{name: "none optional", optional: true, want: ""},
		{name: "missing file", file: file + ".missing", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLyrics(tt.text, tt.file, !tt.optional)
			if tt.wantErr {
				if err == nil {
					t.Fatal("err = nil; want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q; want %q", got, tt.want)
			}
		})
	}
}

func TestFirstOf(t *testing.T) {
	if got, _ := firstOf("flag", []string{"arg"}, "url"); got != "flag" {
		t.Errorf("got %q; want flag", got)
	}
	if got, _ := firstOf("", []string{"arg"}, "url"); got != "arg" {
		t.Errorf("got %q; want arg", got)
	}
	if _, err := firstOf("", nil, "url"); err == nil {
		t.Error("err = nil; want error")
	}
}

func TestServeFlagsFromEnv(t *testing.T) {
	t.Setenv("SUNOMIX_ADDR", "127.0.0.1:0")
	t.Setenv("SUNOMIX_RETRIES", "5")
	cmd := newServeCommand()
	if err := cmd.Parse(nil); err != nil {
		t.Fatal(err)
	}
	if got := cmd.FlagSet.Lookup("addr").Value.String(); got != "127.0.0.1:0" {
		t.Errorf("addr = %q", got)
	}
	if got := cmd.FlagSet.Lookup("retries").Value.String(); got != "5" {
		t.Errorf("retries = %q", got)
	}
}

func TestVersion(t *testing.T) {
	cmd := New("v1.0.0", "abc", "today")
	if err := cmd.ParseAndRun(context.Background(), []string{"version"}); err != nil {
		t.Fatal(err)
	}
}
