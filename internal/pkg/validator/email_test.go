package validator

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  Ana@Acme.COM ", "ana@acme.com", false},
		{"ana@acme", "", true},
		{"not-an-email", "", true},
		{"", "", true},
		{"Ana <ana@acme.com>", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeEmail(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeSlug(t *testing.T) {
	tests := map[string]string{
		"Acme":         "acme",
		"  ACME-Corp ": "acme-corp",
		"Acme_Corp":    "acme_corp",
		"acme.io":      "acme.io",
		"   ":          "",
	}
	for in, want := range tests {
		if got := NormalizeSlug(in); got != want {
			t.Errorf("NormalizeSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"Portal.Acme.com:8443": "portal.acme.com",
		"portal.acme.com.":     "portal.acme.com",
		"localhost":            "localhost",
	}
	for in, want := range tests {
		if got := NormalizeHost(in); got != want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err != ErrPasswordTooWeak {
		t.Errorf("expected ErrPasswordTooWeak, got %v", err)
	}
	if err := ValidatePassword("long-enough"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
