package service

import (
	"strings"
	"testing"
)

func TestCodeGeneratorDeterministic(t *testing.T) {
	g, err := NewCodeGenerator("secret")
	if err != nil {
		t.Fatal(err)
	}

	a := g.Generate("deal_01", 0)
	b := g.Generate("deal_01", 0)
	if a != b {
		t.Fatalf("expected deterministic code, got %q and %q", a, b)
	}
	if g.Generate("deal_01", 1) == a {
		t.Fatal("expected a different code for the next index")
	}
	if g.Generate("deal_02", 0) == a {
		t.Fatal("expected a different code for another deal")
	}
}

func TestCodeGeneratorShape(t *testing.T) {
	g, _ := NewCodeGenerator("secret")
	seen := make(map[string]bool)

	for i := uint32(0); i < 500; i++ {
		code := g.Generate("deal_x", i)
		if len(code) != 10 {
			t.Fatalf("expected 10 characters, got %q", code)
		}
		if !strings.ContainsRune(codeDigits, rune(code[0])) {
			t.Fatalf("first character must be a digit: %q", code)
		}
		if !strings.ContainsRune(codeLetters, rune(code[1])) {
			t.Fatalf("second character must be a letter: %q", code)
		}
		if strings.ContainsAny(code, "01OIL") {
			t.Fatalf("code contains a look-alike character: %q", code)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q at index %d", code, i)
		}
		seen[code] = true
	}
}
