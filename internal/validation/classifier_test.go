package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xela07ax/trust-center/internal/domain"
)

func boolPtr(b bool) *bool { return &b }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		assertion *bool
		reason    string
		want      domain.Status
	}{
		{name: "false", assertion: boolPtr(false), reason: "MFA disabled", want: domain.StatusFailed},
		{name: "false ignores warning marker", assertion: boolPtr(false), reason: "WARNING: missing", want: domain.StatusFailed},
		{name: "true plain", assertion: boolPtr(true), reason: "All users have MFA", want: domain.StatusPassed},
		{name: "true warning word", assertion: boolPtr(true), reason: "Warning: 2 keys older than 90 days", want: domain.StatusWarning},
		{name: "true warning glyph", assertion: boolPtr(true), reason: "⚠️ partial coverage", want: domain.StatusWarning},
		{name: "true info word", assertion: boolPtr(true), reason: "INFO only", want: domain.StatusInfo},
		{name: "true info glyph", assertion: boolPtr(true), reason: "ℹ️ provided for reference", want: domain.StatusInfo},
		{name: "true context", assertion: boolPtr(true), reason: "context gathered", want: domain.StatusInfo},
		{name: "warning beats info", assertion: boolPtr(true), reason: "warning with info", want: domain.StatusWarning},
		{name: "true empty reason", assertion: boolPtr(true), reason: "", want: domain.StatusPassed},
		{name: "absent", assertion: nil, reason: "warning", want: domain.StatusUnknown},
		{name: "absent empty", assertion: nil, reason: "", want: domain.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.assertion, tt.reason))
		})
	}
}

func TestClassifyRawIsTotal(t *testing.T) {
	assertions := []any{true, false, "true", "false", "TRUE", " False ", "yes", "", 1.0, 0.0, nil, []any{}, map[string]any{}}
	reasons := []any{"", "warning", "⚠", "info", "ℹ", "context", "ok", nil, 42.0}

	valid := map[domain.Status]bool{
		domain.StatusPassed:  true,
		domain.StatusFailed:  true,
		domain.StatusWarning: true,
		domain.StatusInfo:    true,
		domain.StatusUnknown: true,
	}

	for _, a := range assertions {
		for _, r := range reasons {
			raw := map[string]any{}
			if a != nil {
				raw["assertion"] = a
			}
			if r != nil {
				raw["assertion_reason"] = r
			}
			assert.NotPanics(t, func() {
				got := ClassifyRaw(raw)
				assert.True(t, valid[got], "unexpected status %q for %v/%v", got, a, r)
			})
		}
	}
}

func TestClassifyRawStringAssertion(t *testing.T) {
	assert.Equal(t, domain.StatusFailed, ClassifyRaw(map[string]any{"assertion": "false"}))
	assert.Equal(t, domain.StatusPassed, ClassifyRaw(map[string]any{"assertion": "true"}))
	assert.Equal(t, domain.StatusWarning, ClassifyRaw(map[string]any{"assertion": "true", "reason": "warning"}))
	assert.Equal(t, domain.StatusUnknown, ClassifyRaw(map[string]any{}))
}
