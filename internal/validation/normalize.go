package validation

/*
Файл normalize.go: граница приема данных (Ingestion Boundary).

Артефакты валидации приходят из разных версий движка, поэтому одно и то же логическое поле
может называться по-разному (id / validation_id / ksi_id), а assertion может быть строкой.
Все альтернативные имена разрешаются ровно один раз здесь, дальше по конвейеру ходит только
каноническая модель domain.ValidationRecord.
*/

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xela07ax/trust-center/internal/domain"
)

// Кандидаты имен для каждого логического поля. Порядок = приоритет.
var (
	idKeys          = []string{"ksi_id", "validation_id", "id", "control_id"}
	assertionKeys   = []string{"assertion", "passed"}
	reasonKeys      = []string{"assertion_reason", "reason", "message", "summary"}
	descriptionKeys = []string{"description", "title", "name"}
	categoryKeys    = []string{"category", "family"}
	scoreKeys       = []string{"score", "compliance_score", "percentage", "pass_rate"}
	dateKeys        = []string{"timestamp", "validation_date", "date", "validated_at"}
	executionKeys   = []string{"cli_command_details", "command_executions", "commands"}
	successfulKeys  = []string{"successful_commands", "commands_successful"}
	summaryKeys     = []string{"cli_command", "cli_commands_summary"}
	sourceKeys      = []string{"command_source", "source"}
)

var (
	markupTag  = regexp.MustCompile(`<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// RawRecord: запись в том виде, в каком пришла из unified_ksi_validations.json.
// Key заполнен, если results пришел объектом (ключ карты используется как запасной ID).
type RawRecord struct {
	Key    string
	Fields map[string]any
}

// lookup возвращает первое непустое значение из списка кандидатов.
func lookup(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupString(raw map[string]any, keys []string) string {
	v, ok := lookup(raw, keys)
	if !ok {
		return ""
	}
	return asString(v)
}

func lookupFloat(raw map[string]any, keys []string) (float64, bool) {
	v, ok := lookup(raw, keys)
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

func lookupInt(raw map[string]any, keys []string) (int, bool) {
	f, ok := lookupFloat(raw, keys)
	if !ok {
		return 0, false
	}
	return int(math.Round(f)), true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// ParseAssertion приводит assertion к tri-state: true / false / nil.
// Строки "true"/"false" принимаются без учета регистра, все остальное, неизвестно.
func ParseAssertion(v any) *bool {
	var b bool
	switch t := v.(type) {
	case bool:
		b = t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true":
			b = true
		case "false":
			b = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &b
}

// StripText убирает эмодзи и разметку из свободного текста и схлопывает пробелы.
func StripText(s string) string {
	if s == "" {
		return s
	}
	s = markupTag.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // пиктограммы, смайлы, транспорт, флаги
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols + dingbats (⚠ ✅ ❌)
		return true
	case r >= 0x2300 && r <= 0x23FF, r >= 0x2B00 && r <= 0x2BFF:
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	}
	switch r {
	case 0x2139, 0x203C, 0x2049, 0x20E3, 0x200D, 0xFE0E, 0xFE0F:
		return true
	}
	return false
}

// NormalizeRecord собирает каноническую запись: ID, классификация, команды, очистка текста.
// Возвращает false, если идентификатор определить не удалось.
func NormalizeRecord(in RawRecord, reg Register) (domain.ValidationRecord, bool) {
	raw := in.Fields
	id := strings.TrimSpace(lookupString(raw, idKeys))
	if id == "" {
		id = strings.TrimSpace(in.Key)
	}
	if id == "" {
		return domain.ValidationRecord{}, false
	}

	assertionRaw, _ := lookup(raw, assertionKeys)
	assertion := ParseAssertion(assertionRaw)
	reason := lookupString(raw, reasonKeys)

	// Классифицируем по сырому тексту: маркеры ⚠/ℹ исчезнут после StripText
	rec := domain.ValidationRecord{
		ID:          id,
		Assertion:   assertion,
		Status:      Classify(assertion, reason),
		Category:    StripText(lookupString(raw, categoryKeys)),
		Description: StripText(lookupString(raw, descriptionKeys)),
		Reason:      StripText(reason),
		Timestamp:   lookupString(raw, dateKeys),
	}
	if score, ok := lookupFloat(raw, scoreKeys); ok {
		rec.Score = &score
	}

	var entry *RegisterEntry
	if e, ok := reg.Lookup(id); ok {
		entry = &e
		rec.Justification = StripText(e.Justification)
		if rec.Description == "" {
			rec.Description = StripText(e.Description)
		}
	}

	res := ResolveCommands(CommandInputFromRaw(raw, assertion, rec.Score), entry)
	rec.Commands = res.Commands
	rec.CommandSource = res.Source
	rec.CommandsExecuted = len(res.Commands)
	rec.SuccessfulCommands = res.SuccessfulCount
	rec.CommandsEstimated = res.Estimated

	return rec, true
}

// NormalizeRecords нормализует список записей. При повторе ID побеждает последняя запись,
// позиция сохраняется по первому вхождению. skipped, записи без идентификатора.
func NormalizeRecords(raws []RawRecord, reg Register) (records []domain.ValidationRecord, skipped int) {
	records = make([]domain.ValidationRecord, 0, len(raws))
	index := make(map[string]int, len(raws))
	for _, raw := range raws {
		rec, ok := NormalizeRecord(raw, reg)
		if !ok {
			skipped++
			continue
		}
		if i, seen := index[rec.ID]; seen {
			records[i] = rec
			continue
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	return records, skipped
}
