package framerange_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelforge/internal/framerange"
)

func TestParseAndFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
		len  int
	}{
		{in: "", want: "", len: 0},
		{in: "5", want: "5", len: 1},
		{in: "1-10", want: "1-10", len: 10},
		{in: "1-10,12", want: "1-10,12", len: 11},
		{in: " 12 , 1-3 ,2", want: "1-3,12", len: 4},
		{in: "4,5", want: "4-5", len: 2},
		{in: "1-3,4-6,8", want: "1-6,8", len: 7},
		{in: "0,0,0", want: "0", len: 1},
		{in: "7-7", want: "7", len: 1},
		{in: "0-2147483647", want: "0-2147483647", len: 1 << 31},
	}
	for _, tc := range cases {
		set, err := framerange.Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.in, err)
		}
		if got := set.String(); got != tc.want {
			t.Fatalf("Parse(%q).String() = %q, want %q", tc.in, got, tc.want)
		}
		if set.Len() != tc.len {
			t.Fatalf("Parse(%q).Len() = %d, want %d", tc.in, set.Len(), tc.len)
		}
	}
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	cases := map[string]string{
		"1,,2":  "",
		"a":     "a",
		"-5":    "-5",
		"5-2":   "5-2",
		"1-2-3": "1-2-3",
		"3-":    "3-",
		"1.5":   "1.5",

		"2147483648":            "2147483648",
		"0-9223372036854775807": "0-9223372036854775807",
		"99999999999999999999":  "99999999999999999999",
	}
	for in, token := range cases {
		_, err := framerange.Parse(in)
		if err == nil {
			t.Fatalf("Parse(%q) expected error", in)
		}
		var parseErr *framerange.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("Parse(%q) error %T is not *ParseError", in, err)
		}
		if parseErr.Token != token {
			t.Fatalf("Parse(%q) token = %q, want %q", in, parseErr.Token, token)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	sets := []framerange.Set{
		framerange.New(),
		framerange.New(0),
		framerange.New(9, 3, 4, 5, 1, 100, 101),
		framerange.Span(1, 199),
		framerange.Span(0, 0).Union(framerange.Span(2, 2)),
		framerange.New(framerange.MaxFrame - 1).Dilate(5),
		framerange.Span(0, framerange.MaxFrame).Dilate(framerange.MaxFrame),
		framerange.Span(framerange.MaxFrame-3, framerange.MaxFrame+40),
	}
	for _, s := range sets {
		parsed, err := framerange.Parse(s.String())
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", s.String(), err)
		}
		if !parsed.Equal(s) {
			t.Fatalf("round trip mismatch: %q -> %q", s.String(), parsed.String())
		}
	}
}

func TestGapFreeSetCollapses(t *testing.T) {
	set := framerange.New(5, 6, 7, 8, 9)
	if got := set.String(); got != "5-9" {
		t.Fatalf("String() = %q, want 5-9", got)
	}
}

func TestDilate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{in: "0", n: 3, want: "0-3"},
		{in: "2,10", n: 2, want: "0-4,8-12"},
		{in: "2,10", n: 3, want: "0-5,7-13"},
		{in: "2,10", n: 4, want: "0-14"},
		{in: "5-6", n: 0, want: "5-6"},
		{in: "5-6", n: -4, want: "5-6"},
		{in: "", n: 4, want: ""},
		{in: "2147483646", n: 5, want: "2147483641-2147483647"},
		{in: "3,2147483647", n: 2147483647, want: "0-2147483647"},
		{in: "10", n: 1 << 40, want: "0-2147483647"},
	}
	for _, tc := range cases {
		got := framerange.MustParse(tc.in).Dilate(tc.n)
		if got.String() != tc.want {
			t.Fatalf("Dilate(%q, %d) = %q, want %q", tc.in, tc.n, got.String(), tc.want)
		}
		if lo, ok := got.Min(); ok && lo < 0 {
			t.Fatalf("Dilate(%q, %d) produced negative member %d", tc.in, tc.n, lo)
		}
		if hi, ok := got.Max(); ok && hi > framerange.MaxFrame {
			t.Fatalf("Dilate(%q, %d) produced member %d above MaxFrame", tc.in, tc.n, hi)
		}
	}
}

func TestSetAlgebra(t *testing.T) {
	a := framerange.MustParse("1-10,20-30")
	b := framerange.MustParse("5-22,40")

	if got := a.Union(b).String(); got != "1-30,40" {
		t.Fatalf("Union = %q", got)
	}
	if got := a.Intersect(b).String(); got != "5-10,20-22" {
		t.Fatalf("Intersect = %q", got)
	}
	if got := a.Difference(b).String(); got != "1-4,23-30" {
		t.Fatalf("Difference = %q", got)
	}
	if got := b.Difference(a).String(); got != "11-19,40" {
		t.Fatalf("reverse Difference = %q", got)
	}
	if got := a.Difference(framerange.MustParse("3,5,7")).String(); got != "1-2,4,6,8-10,20-30" {
		t.Fatalf("Difference with holes = %q", got)
	}
	if !a.Contains(20) || a.Contains(15) || a.Contains(31) {
		t.Fatal("Contains returned unexpected membership")
	}
	if a.String() != "1-10,20-30" {
		t.Fatalf("receiver mutated: %q", a.String())
	}
}

func TestMembersAndBounds(t *testing.T) {
	set := framerange.MustParse("3-5,9")
	if diff := cmp.Diff([]int{3, 4, 5, 9}, set.Members()); diff != "" {
		t.Fatalf("Members mismatch (-want +got):\n%s", diff)
	}
	bounds, ok := set.Bounds()
	if !ok || bounds.Start != 3 || bounds.End != 9 {
		t.Fatalf("Bounds = %+v, %v", bounds, ok)
	}
	if _, ok := framerange.New().Bounds(); ok {
		t.Fatal("expected no bounds for empty set")
	}
}

func TestTextMarshaling(t *testing.T) {
	var set framerange.Set
	if err := set.UnmarshalText([]byte("1-3, 7")); err != nil {
		t.Fatalf("UnmarshalText returned error: %v", err)
	}
	text, err := set.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText returned error: %v", err)
	}
	if string(text) != "1-3,7" {
		t.Fatalf("MarshalText = %q", text)
	}
}
