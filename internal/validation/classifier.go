package validation

import (
	"strings"

	"github.com/xela07ax/trust-center/internal/domain"
)

// Маркеры в тексте reason, понижающие assertion=true до warning/info.
var (
	warningMarkers = []string{"warning", "⚠"}
	infoMarkers    = []string{"info", "ℹ", "context"}
)

// Classify: тотальная функция: для любого входа возвращает один из пяти статусов.
// Порядок проверок важен: запись с assertion=true может быть понижена текстом reason,
// поэтому нельзя делать вывод только по assertion.
func Classify(assertion *bool, reason string) domain.Status {
	if assertion == nil {
		return domain.StatusUnknown
	}
	if !*assertion {
		return domain.StatusFailed
	}

	text := strings.ToLower(reason)
	if containsAny(text, warningMarkers) {
		return domain.StatusWarning
	}
	if containsAny(text, infoMarkers) {
		return domain.StatusInfo
	}
	return domain.StatusPassed
}

// ClassifyRaw классифицирует сырую запись (assertion как bool, строка или отсутствует).
func ClassifyRaw(raw map[string]any) domain.Status {
	v, _ := lookup(raw, assertionKeys)
	return Classify(ParseAssertion(v), lookupString(raw, reasonKeys))
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
