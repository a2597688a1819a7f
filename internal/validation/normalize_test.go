package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/trust-center/internal/domain"
)

func TestScore(t *testing.T) {
	assert.Equal(t, 90.0, Score(226, 251))
	assert.Equal(t, 0.0, Score(0, 0))
	assert.Equal(t, 66.7, Score(2, 3))
	assert.Equal(t, 100.0, Score(5, 5))
}

func TestComputeMetrics(t *testing.T) {
	records := []domain.ValidationRecord{
		{Status: domain.StatusPassed},
		{Status: domain.StatusWarning},
		{Status: domain.StatusInfo},
		{Status: domain.StatusFailed},
		{Status: domain.StatusUnknown},
	}
	m := ComputeMetrics(records)

	assert.Equal(t, 3, m.PassedCount)
	assert.Equal(t, 1, m.FailedCount)
	assert.Equal(t, 1, m.WarningCount)
	assert.Equal(t, 1, m.InfoCount)
	assert.Equal(t, 1, m.UnknownCount)
	assert.Equal(t, 4, m.TotalCount)
	assert.Equal(t, 75.0, m.Score)
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil)
	assert.Equal(t, 0.0, m.Score)
	assert.Equal(t, 0, m.TotalCount)
}

func TestStripText(t *testing.T) {
	assert.Equal(t, "MFA enforced for all users", StripText("✅ MFA enforced <b>for</b> all users 🔐"))
	assert.Equal(t, "Partial coverage", StripText("⚠️  Partial\n coverage"))
	assert.Equal(t, "Identity & Access", StripText("Identity & Access"))
	assert.Equal(t, "", StripText(""))
}

func TestParseAssertion(t *testing.T) {
	require.NotNil(t, ParseAssertion(true))
	assert.True(t, *ParseAssertion(true))
	assert.False(t, *ParseAssertion("False"))
	assert.True(t, *ParseAssertion(" TRUE "))
	assert.Nil(t, ParseAssertion("maybe"))
	assert.Nil(t, ParseAssertion(1.0))
	assert.Nil(t, ParseAssertion(nil))
}

func TestNormalizeRecordLegacyFieldNames(t *testing.T) {
	reg := Register{"KSI_IAM_01": {
		Commands:      []RegisterCommand{{Command: "aws iam list-users"}, {Command: "aws iam list-roles"}},
		Description:   "Phishing-resistant MFA",
		Justification: "📌 Evidence of MFA enforcement",
	}}
	raw := RawRecord{Fields: map[string]any{
		"validation_id":    "KSI-IAM-01",
		"assertion":        "true",
		"assertion_reason": "ℹ️ context only",
		"category":         "🔑 Identity",
		"score":            100.0,
	}}

	rec, ok := NormalizeRecord(raw, reg)

	require.True(t, ok)
	assert.Equal(t, "KSI-IAM-01", rec.ID)
	require.NotNil(t, rec.Assertion)
	assert.True(t, *rec.Assertion)
	assert.Equal(t, domain.StatusInfo, rec.Status)
	assert.Equal(t, "context only", rec.Reason)
	assert.Equal(t, "Identity", rec.Category)
	assert.Equal(t, "Phishing-resistant MFA", rec.Description)
	assert.Equal(t, "Evidence of MFA enforcement", rec.Justification)
	assert.Equal(t, domain.SourceComprehensiveRegister, rec.CommandSource)
	assert.Equal(t, 2, rec.CommandsExecuted)
	assert.Equal(t, 2, rec.SuccessfulCommands)
	assert.True(t, rec.CommandsEstimated)
}

func TestNormalizeRecordsUsesKeyAndDeduplicates(t *testing.T) {
	raws := []RawRecord{
		{Key: "KSI-CNA-01", Fields: map[string]any{"assertion": false}},
		{Fields: map[string]any{"description": "no id"}},
		{Fields: map[string]any{"ksi_id": "KSI-SVC-01", "assertion": true}},
		{Fields: map[string]any{"id": "KSI-CNA-01", "assertion": true}},
	}

	records, skipped := NormalizeRecords(raws, nil)

	assert.Equal(t, 1, skipped)
	require.Len(t, records, 2)
	assert.Equal(t, "KSI-CNA-01", records[0].ID)
	assert.Equal(t, domain.StatusPassed, records[0].Status)
	assert.Equal(t, "KSI-SVC-01", records[1].ID)
	for _, r := range records {
		assert.Equal(t, len(r.Commands), r.CommandsExecuted)
		assert.LessOrEqual(t, r.SuccessfulCommands, r.CommandsExecuted)
	}
}

func TestDecodeUnifiedShapes(t *testing.T) {
	doc, err := DecodeUnified([]byte(`{"metadata":{"impact_level":"Moderate"},"results":[{"ksi_id":"A"},{"ksi_id":"B"},7]}`))
	require.NoError(t, err)
	assert.Equal(t, "Moderate", doc.Metadata["impact_level"])
	assert.Len(t, doc.Records, 2)

	doc, err = DecodeUnified([]byte(`{"results":{"KSI-B":{"assertion":true},"KSI-A":{"assertion":false}}}`))
	require.NoError(t, err)
	require.Len(t, doc.Records, 2)
	assert.Equal(t, "KSI-A", doc.Records[0].Key)
	assert.Equal(t, "KSI-B", doc.Records[1].Key)

	doc, err = DecodeUnified([]byte(`{"results":[],"validations":[{"id":"X"}]}`))
	require.NoError(t, err)
	assert.Len(t, doc.Records, 1)

	doc, err = DecodeUnified([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, doc.Records)

	_, err = DecodeUnified([]byte(`<html>oops</html>`))
	assert.Error(t, err)

	_, err = DecodeUnified([]byte(`null`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = DecodeUnified([]byte(`{"results":"nope"}`))
	assert.Error(t, err)
}

func TestDecodeRegisterSkipsBadEntries(t *testing.T) {
	reg, err := DecodeRegister([]byte(`{
		"KSI-IAM-01": {"cli_commands":[{"command":"aws iam list-users","note":"users"}],"justification":"j"},
		"KSI-BAD": "oops"
	}`))
	require.NoError(t, err)
	require.Len(t, reg, 1)
	assert.Equal(t, "users", reg["KSI-IAM-01"].Commands[0].Note)
}

func TestBuildMetadataFallsBackToMetrics(t *testing.T) {
	m := domain.AggregateMetrics{Score: 90, PassedCount: 9, FailedCount: 1, TotalCount: 10}
	md := BuildMetadata(map[string]any{
		"impact_level":      "Low",
		"impact_thresholds": map[string]any{"low": 0.8},
		"passed":            8.0,
	}, m)

	assert.Equal(t, "Low", md.ImpactLevel)
	assert.Equal(t, 8, md.Passed)
	assert.Equal(t, 1, md.Failed)
	assert.Equal(t, 10, md.TotalValidated)
	assert.Equal(t, 90.0, md.PassRate)
	assert.Equal(t, 0.8, md.ImpactThresholds["low"])
}
