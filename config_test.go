package whiskypay

import (
	"testing"
	"time"
)

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		override string
		origin   string
		want     string
	}{
		{"override wins", "https://api.example.com", "https://shop.example.com", "https://api.example.com"},
		{"origin next", "", "https://shop.example.com", "https://shop.example.com"},
		{"default last", "", "", DefaultBaseURL},
		{"trailing slash stripped", "https://api.example.com/", "", "https://api.example.com"},
		{"whitespace override ignored", "   ", "https://shop.example.com", "https://shop.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveBaseURL(tt.override, tt.origin); got != tt.want {
				t.Errorf("ResolveBaseURL(%q, %q) = %q, want %q", tt.override, tt.origin, got, tt.want)
			}
		})
	}
}

func TestTimeoutConfigValidate(t *testing.T) {
	if err := DefaultTimeouts.Validate(); err != nil {
		t.Errorf("default timeouts should validate: %v", err)
	}
	if err := DefaultTimeouts.WithVerify(0).Validate(); err == nil {
		t.Error("expected error for zero verify timeout")
	}
	if err := DefaultTimeouts.WithSessionFetch(-time.Second).Validate(); err == nil {
		t.Error("expected error for negative fetch timeout")
	}
}

func TestTimeoutConfigCopyModifiers(t *testing.T) {
	base := DefaultTimeouts
	modified := base.WithSessionCreate(time.Minute)
	if modified.SessionCreate != time.Minute {
		t.Errorf("expected modified create timeout, got %v", modified.SessionCreate)
	}
	if base.SessionCreate == time.Minute {
		t.Error("modifier must not mutate the receiver")
	}
}
