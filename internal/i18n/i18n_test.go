package i18n

import (
	"testing"
)

func TestT_English(t *testing.T) {
	Init("en")
	if GetLang() != "en" {
		t.Fatalf("expected lang 'en', got %q", GetLang())
	}

	if got := T("deploy.trust.cancelled"); got != "Cancelled." {
		t.Fatalf("expected 'Cancelled.', got %q", got)
	}

	got := T("deploy.trust.added", "sheets.example.com", "ssh-ed25519", "known_hosts")
	if got != "Permanently added 'sheets.example.com' (ssh-ed25519) to known_hosts." {
		t.Fatalf("unexpected formatted translation: %q", got)
	}

	if got := T("deploy.trust.confirm"); got != "Are you sure you want to continue connecting (yes/no)? " {
		t.Fatalf("trailing space lost: %q", got)
	}
}

func TestT_UnknownIDReturnsID(t *testing.T) {
	Init("en")
	if got := T("no.such.message"); got != "no.such.message" {
		t.Fatalf("expected the ID back, got %q", got)
	}
}

func TestT_GermanWithEnglishFallback(t *testing.T) {
	t.Cleanup(func() { Init("en") })

	SetLang("de")
	if GetLang() != "de" {
		t.Fatalf("expected lang 'de', got %q", GetLang())
	}
	if got := T("deploy.trust.cancelled"); got != "Abgebrochen." {
		t.Fatalf("expected German 'Abgebrochen.', got %q", got)
	}
	// Not translated to German.
	if got := T("deploy.history.failed_at", "pull-image"); got != "failed at pull-image" {
		t.Fatalf("expected English fallback, got %q", got)
	}
}

func TestInit_UnknownLanguage(t *testing.T) {
	t.Cleanup(func() { Init("en") })

	Init("xx")
	if got := T("deploy.history.empty"); got != "No deployments recorded." {
		t.Fatalf("expected English, got %q", got)
	}
}
