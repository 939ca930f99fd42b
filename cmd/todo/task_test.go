package main

import (
	"testing"
	"time"
)

func TestParseDue(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC) // a Monday

	tests := []struct {
		name    string
		text    string
		want    time.Time
		wantErr bool
	}{
		{
			name: "iso date",
			text: "2025-07-01",
			want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "tomorrow",
			text: "tomorrow",
			want: time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			name:    "nonsense",
			text:    "the heat death of the universe",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDue(tt.text, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseDue(%q) should fail", tt.text)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDue(%q) error = %v", tt.text, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseDue(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q, want 01234567", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short input should pass through, got %q", got)
	}
}
