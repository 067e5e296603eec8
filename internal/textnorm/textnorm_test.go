package textnorm

import (
	"testing"
	"testing/quick"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "empty", input: "", expect: ""},
		{name: "only whitespace", input: " \t\n  ", expect: ""},
		{name: "lowercases", input: "Data ANALYST", expect: "data analyst"},
		{name: "strips accents", input: "Café Résumé naïve", expect: "cafe resume naive"},
		{name: "punctuation becomes separator", input: "SQL/Python, R & SAS.", expect: "sql python r sas"},
		{name: "keeps digits", input: "Power BI 2024!", expect: "power bi 2024"},
		{name: "collapses multi-line bullets", input: "\n  * Apply rules\n  * Use UML\n", expect: "apply rules use uml"},
		{name: "compatibility decomposition", input: "ﬁnance ①", expect: "finance 1"},
		{name: "garbage", input: "ad83!!@# $$$", expect: "ad83"},
		{name: "non latin script dropped", input: "анализ data", expect: "data"},
		{name: "invalid utf8", input: "ok\xff\xfeok", expect: "ok ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	idempotent := func(s string) bool {
		once := Normalize(s)
		return Normalize(once) == once
	}

	if err := quick.Check(idempotent, &quick.Config{MaxCount: 2000}); err != nil {
		t.Fatal(err)
	}
}

func TestNormalizeOptional(t *testing.T) {
	t.Parallel()

	if got := NormalizeOptional(nil); got != "" {
		t.Fatalf("expected empty string for nil input, got %q", got)
	}

	text := "  Machine   Learning "
	if got := NormalizeOptional(&text); got != "machine learning" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func FuzzNormalize(f *testing.F) {
	f.Add("Data Analyst")
	f.Add("ad83!!@# $$$")
	f.Add("Crème brûlée")

	f.Fuzz(func(t *testing.T, s string) {
		once := Normalize(s)
		if Normalize(once) != once {
			t.Fatalf("normalize is not idempotent for %q", s)
		}
		for _, r := range once {
			if !(r == ' ' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
				t.Fatalf("unexpected rune %q in %q", r, once)
			}
		}
	})
}
