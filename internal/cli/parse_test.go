package cli

import (
	"testing"

	"github.com/tessro/cassette/internal/core"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"90000", 90000, false},
		{"1:30", 90000, false},
		{"0:05", 5000, false},
		{"1:02:03", 3723000, false},
		{"1:75", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"1:2:3:4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePosition(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePosition(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parsePosition(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSwitch(t *testing.T) {
	for _, in := range []string{"on", "ON", "true", "1"} {
		if v, err := parseSwitch(in); err != nil || !v {
			t.Errorf("parseSwitch(%q) = %v, %v", in, v, err)
		}
	}
	for _, in := range []string{"off", "false", "0"} {
		if v, err := parseSwitch(in); err != nil || v {
			t.Errorf("parseSwitch(%q) = %v, %v", in, v, err)
		}
	}
	if _, err := parseSwitch("maybe"); err == nil {
		t.Error("parseSwitch(maybe) should fail")
	}
}

func TestParseRepeat(t *testing.T) {
	if m, err := parseRepeat("Track"); err != nil || m != core.RepeatTrack {
		t.Errorf("parseRepeat(Track) = %q, %v", m, err)
	}
	if _, err := parseRepeat("all"); err == nil {
		t.Error("parseRepeat(all) should fail")
	}
}

func TestParseVolume(t *testing.T) {
	if v, err := parseVolume("40%"); err != nil || v != 40 {
		t.Errorf("parseVolume(40%%) = %d, %v", v, err)
	}
	if _, err := parseVolume("101"); err == nil {
		t.Error("parseVolume(101) should fail")
	}
}
