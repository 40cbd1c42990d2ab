package browser

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	orig := getRuntime
	t.Cleanup(func() { getRuntime = orig })

	tests := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{"darwin", "open", false},
		{"linux", "xdg-open", false},
		{"windows", "rundll32", false},
		{"plan9", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			getRuntime = func() string { return tt.goos }
			cmd, err := command("https://example.com")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("command() error = %v", err)
			}
			if !strings.HasSuffix(cmd.Path, tt.want) && cmd.Args[0] != tt.want {
				t.Errorf("command = %v, want %s", cmd.Args, tt.want)
			}
			if last := cmd.Args[len(cmd.Args)-1]; last != "https://example.com" {
				t.Errorf("last arg = %q, want the URL", last)
			}
		})
	}
}

func TestNavigatorPrintsURL(t *testing.T) {
	var out bytes.Buffer
	var opened string
	n := &Navigator{Out: &out, open: func(u string) error {
		opened = u
		return errors.New("no display")
	}}

	if err := n.Navigate(context.Background(), "https://accounts.example/authorize"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if opened != "https://accounts.example/authorize" {
		t.Errorf("opened %q", opened)
	}
	if !strings.Contains(out.String(), "https://accounts.example/authorize") {
		t.Errorf("output missing URL: %q", out.String())
	}
	if !strings.Contains(out.String(), "no display") {
		t.Errorf("output missing open failure: %q", out.String())
	}
}
