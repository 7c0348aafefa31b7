package whiskypay

import (
	"context"
	"strings"
)

// DefaultSuccessMarkers is marker list v1: phrases the backend's
// reconciliation path emits into diagnostic output when a payment lands
// while its store is dropping connections. The list is versioned so the
// shim can be audited and retired once the backend bug is fixed.
var DefaultSuccessMarkers = []string{
	"payment verified",
	"payment successful",
	"already verified",
	"duplicate transaction",
}

// MarkerDetector implements SuccessSignalDetector by scanning lines from a
// caller-supplied source for known success markers. It bridges a known
// backend instability window; precision is traded for availability.
type MarkerDetector struct {
	// Version identifies the marker list, e.g. "v1".
	Version string

	// Markers are the recognized phrases, matched case-insensitively.
	Markers []string

	// Source returns the diagnostic lines to scan. Lines are re-read on
	// every scan so late-arriving evidence is picked up.
	Source func(ctx context.Context) []string
}

var _ SuccessSignalDetector = (*MarkerDetector)(nil)

// NewMarkerDetector creates a detector with the v1 marker list.
func NewMarkerDetector(source func(ctx context.Context) []string) *MarkerDetector {
	return &MarkerDetector{
		Version: "v1",
		Markers: DefaultSuccessMarkers,
		Source:  source,
	}
}

// Scan reports whether any line from the source carries a recognized
// marker. Lines naming a different session or signature are skipped, so
// evidence from an earlier checkout cannot bleed into this one.
func (d *MarkerDetector) Scan(ctx context.Context, sessionID, signature string) bool {
	if d.Source == nil {
		return false
	}
	for _, line := range d.Source(ctx) {
		if !lineMatchesAttempt(line, sessionID, signature) {
			continue
		}
		lower := strings.ToLower(line)
		for _, marker := range d.Markers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return true
			}
		}
	}
	return false
}

// lineMatchesAttempt accepts lines that name this attempt's session or
// signature, and lines that name neither (ambient output).
func lineMatchesAttempt(line, sessionID, signature string) bool {
	if signature != "" && strings.Contains(line, signature) {
		return true
	}
	if sessionID != "" && strings.Contains(line, sessionID) {
		return true
	}
	return !strings.Contains(line, "sig=") && !strings.Contains(line, "session=")
}

// MarkerVersion returns the marker list version.
func (d *MarkerDetector) MarkerVersion() string {
	return d.Version
}

// NopDetector never reports success. It is the default when the shim is
// disabled.
type NopDetector struct{}

var _ SuccessSignalDetector = NopDetector{}

// Scan always returns false.
func (NopDetector) Scan(context.Context, string, string) bool { return false }

// MarkerVersion returns "disabled".
func (NopDetector) MarkerVersion() string { return "disabled" }
