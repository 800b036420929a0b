package date

import (
	"testing"
	"time"
)

// TestTime assert that the time() is cannonical and gives comparable times.
func TestTime(t *testing.T) {
	d1 := New(2025, 7, 31)
	d2 := New(2025, 7, 31)

	if d1.time() != d2.time() {
		// Note that usually time.Time are not comparable (there is a pointer for the timezone) this
		// tests also checks that the property remain true
		t.Errorf("invalid time() function same day gives two different time")
	}
}

func TestParseLocal(t *testing.T) {
	tests := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{in: "31/12/2024", want: New(2024, time.December, 31)},
		{in: "1/2/2025", want: New(2025, time.February, 1)},
		{in: " 05/03/2025 14:31:07 ", want: New(2025, time.March, 5)},
		{in: "05/03/2025 14:31", want: New(2025, time.March, 5)},
		{in: "2025-3-5", want: New(2025, time.March, 5)},
		{in: "yesterday", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLocal(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLocal(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocal(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDate_JSON(t *testing.T) {
	d := New(2025, time.January, 2)
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(b) != `"2025-01-02"` {
		t.Errorf("MarshalJSON() = %s, want %q", b, "2025-01-02")
	}
	var got Date
	if err := got.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if got != d {
		t.Errorf("UnmarshalJSON() = %v, want %v", got, d)
	}
}

func TestDate_IsZero(t *testing.T) {
	var d Date
	if !d.IsZero() || d.String() != "" {
		t.Errorf("zero Date: IsZero() = %v, String() = %q", d.IsZero(), d.String())
	}
	if New(2025, 1, 1).IsZero() {
		t.Errorf("New(2025, 1, 1).IsZero() = true")
	}
}
