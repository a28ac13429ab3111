package importer

import "testing"

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"05.03.2021", "2021-03-05"},
		{"2021-03-05", "2021-03-05"},
		{"1.2.2021", "2021-02-01"},
		{"2021/7/4", "2021-07-04"},
		{"03-2021", "2021-03-01"},
		{"2021.03", "2021-03-01"},
		{"2021", "2021-01-01"},
		{"31.02.2021", ""},
		{"05.03.21", ""},
		{"2021-03-05-06", ""},
		{"", ""},
		{"wkrotce", ""},
	}
	for _, c := range cases {
		if got := NormalizeDate(c.in); got != c.want {
			t.Fatalf("NormalizeDate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCombineDateTime(t *testing.T) {
	cases := []struct {
		date string
		time string
		want string
	}{
		{"05.03.2021", "14:30", "2021-03-05 14:30"},
		{"2021-03-12", "", "2021-03-12 00:00"},
		{"2021-03-12", "14.30", "2021-03-12 14:30"},
		{"2021-03-12", "9:15 PM", "2021-03-12 21:15"},
		{"2021-03-12", "nonsense", "2021-03-12 00:00"},
		{"", "14:30", ""},
		{"wkrotce", "14:30", ""},
		// Explicit offsets pass through verbatim.
		{"2021-03-05T10:00:00+02:00", "", "2021-03-05T10:00:00+02:00"},
		{"2021-03-05T10:00:00Z", "12:00", "2021-03-05T10:00:00Z"},
	}
	for _, c := range cases {
		if got := CombineDateTime(c.date, c.time); got != c.want {
			t.Fatalf("CombineDateTime(%q, %q) = %q, want %q", c.date, c.time, got, c.want)
		}
	}
}

func TestHasExplicitOffset(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"2021-03-05T10:00:00+02:00", true},
		{"2021-03-05T10:00:00Z", true},
		{"2021-03-05 10:00:00 +0200", true},
		{"2021-03-05 10:00", false},
		// A bare date has no clock for an offset to apply to.
		{"2021-03-05", false},
		{"", false},
	}
	for _, c := range cases {
		if got := HasExplicitOffset(c.in); got != c.want {
			t.Fatalf("HasExplicitOffset(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
