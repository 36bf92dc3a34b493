package timeutil

import (
	"testing"
	"time"
)

func TestFormat(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*3600)
	ts := time.Date(2025, 7, 14, 15, 3, 22, 0, loc)

	cases := []struct {
		name   string
		layout string
		want   string
	}{
		{name: "default layout", layout: "", want: "2025-07-14 18:03:22 UTC"},
		{name: "explicit layout", layout: DisplayLayout, want: "2025-07-14 18:03:22 UTC"},
		{name: "custom layout", layout: "2006-01-02", want: "2025-07-14"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Format(ts, tc.layout); got != tc.want {
				t.Errorf("Format() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatStored(t *testing.T) {
	if got := FormatStored("2025-07-14T18:03:22Z", ""); got != "2025-07-14 18:03:22 UTC" {
		t.Errorf("FormatStored() = %q", got)
	}
	if got := FormatStored("yesterday", ""); got != "yesterday" {
		t.Errorf("FormatStored() on bad input = %q, want passthrough", got)
	}
}

func TestRetentionCutoff(t *testing.T) {
	now := time.Date(2026, 2, 4, 17, 45, 0, 0, time.UTC)
	want := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if got := RetentionCutoff(now, 30); !got.Equal(want) {
		t.Errorf("RetentionCutoff() = %v, want %v", got, want)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "10m", want: 10 * time.Minute},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "2d", want: 48 * time.Hour},
		{in: " 2D ", want: 48 * time.Hour},
		{in: "", wantErr: true},
		{in: "soon", wantErr: true},
		{in: "xd", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "106751d", want: 106751 * 24 * time.Hour},
		{in: "106752d", wantErr: true},
		{in: "106251591208704d", wantErr: true},
		{in: "99999999999999999999d", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDuration(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseDuration(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if !tc.wantErr && got != tc.want {
				t.Errorf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestHumanize(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 42 * time.Second, want: "42s"},
		{in: 5 * time.Minute, want: "5m"},
		{in: 2*time.Hour + 3*time.Minute, want: "2h 3m"},
		{in: 3*24*time.Hour + 5*time.Minute, want: "3d 0h 5m"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			if got := Humanize(tc.in); got != tc.want {
				t.Errorf("Humanize(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
