package line

import (
	"strings"
	"testing"
)

func TestDeriveEmailPrefersValidClaimedEmail(t *testing.T) {
	got := DeriveEmail("U123", "Taro.Yamada@Example.COM")
	if got != "taro.yamada@example.com" {
		t.Fatalf("expected lowercased claimed email, got %s", got)
	}
}

func TestDeriveEmailFallsBackToPlaceholder(t *testing.T) {
	cases := map[string]string{
		"":            "line_u123@line.local",
		"not-an-email": "line_u123@line.local",
		"a b@c.d":      "line_u123@line.local",
	}
	for claimed, want := range cases {
		if got := DeriveEmail("U123", claimed); got != want {
			t.Fatalf("claimed %q: expected %s, got %s", claimed, want, got)
		}
	}
}

func TestDeriveEmailIsDeterministic(t *testing.T) {
	first := DeriveEmail("U123-abc_XYZ", "")
	for i := 0; i < 5; i++ {
		if got := DeriveEmail("U123-abc_XYZ", ""); got != first {
			t.Fatalf("expected deterministic derivation, got %s then %s", first, got)
		}
	}

	local := strings.TrimSuffix(strings.TrimPrefix(first, "line_"), "@"+EmailDomain)
	if local != "u123abcxyz" {
		t.Fatalf("expected stripped lowercase local part, got %s", local)
	}
	for _, r := range local {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			t.Fatalf("unexpected character %q in local part %s", r, local)
		}
	}
}
