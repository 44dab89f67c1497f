package privacy

import "testing"

func TestIsSafePathComponent(t *testing.T) {
	cases := map[string]bool{
		"my-site":       true,
		"":              false,
		"../etc/passwd": false,
		"a/b":           false,
		"a\\b":          false,
	}
	for in, want := range cases {
		if got := IsSafePathComponent(in); got != want {
			t.Errorf("IsSafePathComponent(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsSafeInterval(t *testing.T) {
	valid := []string{"30 minutes", "1 hour", "7 days", "1 week"}
	for _, v := range valid {
		if !IsSafeInterval(v) {
			t.Errorf("expected %q to be a safe interval", v)
		}
	}
	invalid := []string{"30 minutes; DROP TABLE events", "minutes", "-1 hour", ""}
	for _, v := range invalid {
		if IsSafeInterval(v) {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

func TestEscapeCSVFieldBlocksFormulaInjection(t *testing.T) {
	got := EscapeCSVField("=SUM(A1:A10)")
	if got[1] != '\'' {
		t.Fatalf("expected leading apostrophe guard, got %q", got)
	}
}

func TestEscapeCSVFieldDoublesQuotes(t *testing.T) {
	got := EscapeCSVField(`say "hi"`)
	want := `"say ""hi"""`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSanitizeTextTruncatesAndStripsControlChars(t *testing.T) {
	got := SanitizeText("hello\x00\x07world", 5)
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestConstantTimeEqString(t *testing.T) {
	if !ConstantTimeEqString("abc", "abc") {
		t.Fatalf("expected equal strings to compare equal")
	}
	if ConstantTimeEqString("abc", "abd") {
		t.Fatalf("expected differing strings to compare unequal")
	}
}
