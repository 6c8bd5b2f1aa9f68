package validation

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"student@example.com", true},
		{"with.dots+tag@sub.domain.org", true},
		{"a@b.co", true},
		{"not-an-email", false},
		{"missing@tld", false},
		{"@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateEmail(tt.email); got != tt.want {
			t.Errorf("ValidateEmail(%q): got %t, want %t", tt.email, got, tt.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	ok, errs := ValidatePassword("securepass1")
	if !ok || len(errs) != 0 {
		t.Errorf("valid password rejected: %v", errs)
	}

	ok, errs = ValidatePassword("short")
	if ok || len(errs) != 1 {
		t.Errorf("short password: ok=%t errs=%v", ok, errs)
	}

	ok, errs = ValidatePassword("12345678")
	if ok || len(errs) != 1 {
		t.Errorf("digits-only password: ok=%t errs=%v", ok, errs)
	}

	ok, errs = ValidatePassword("123")
	if ok || len(errs) != 2 {
		t.Errorf("short digits-only password: ok=%t errs=%v", ok, errs)
	}
}

func TestValidateCouponCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"LAUNCH10", true},
		{"launch10", true},
		{"EID_2026-SPECIAL", true},
		{"AB", false},
		{"HAS SPACE", false},
		{"BAD%CODE", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateCouponCode(tt.code); got != tt.want {
			t.Errorf("ValidateCouponCode(%q): got %t, want %t", tt.code, got, tt.want)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  padded  ", "padded"},
		{"with\x00null", "withnull"},
		{"\x00 \x00", ""},
		{"clean", "clean"},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in); got != tt.want {
			t.Errorf("SanitizeString(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
