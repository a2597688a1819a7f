package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var ErrNotObject = errors.New("document is not a JSON object")

// UnifiedDocument: разобранный unified_ksi_validations.json.
type UnifiedDocument struct {
	Metadata map[string]any
	Records  []RawRecord
}

// DecodeUnified разбирает основной файл валидаций.
// results (или validations, если results пуст) может быть массивом или объектом:
// у объекта значения считаются списком записей, ключи, запасными ID (в порядке сортировки).
func DecodeUnified(data []byte) (*UnifiedDocument, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode unified validations: %w", err)
	}
	if top == nil {
		return nil, ErrNotObject
	}

	doc := &UnifiedDocument{Metadata: map[string]any{}}
	if raw, ok := top["metadata"]; ok {
		// Битая metadata не фатальна: поля будут выведены из агрегатов
		var md map[string]any
		if err := json.Unmarshal(raw, &md); err == nil && md != nil {
			doc.Metadata = md
		}
	}

	for _, key := range []string{"results", "validations"} {
		raw, ok := top[key]
		if !ok {
			continue
		}
		records, err := decodeRecordList(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		if len(records) > 0 {
			doc.Records = records
			break
		}
	}
	if doc.Records == nil {
		doc.Records = []RawRecord{}
	}
	return doc, nil
}

func decodeRecordList(raw json.RawMessage) ([]RawRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var list []any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		out := make([]RawRecord, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, RawRecord{Fields: m})
			}
		}
		return out, nil
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]RawRecord, 0, len(obj))
		for _, k := range keys {
			if m, ok := obj[k].(map[string]any); ok {
				out = append(out, RawRecord{Key: k, Fields: m})
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected record list of type %q", trimmed[0])
	}
}

// DecodeRegister разбирает cli_command_register.json: карта id -> {cli_commands, ...}.
// Записи неверной формы пропускаются, чтобы одна битая запись не гасила весь регистр.
func DecodeRegister(data []byte) (Register, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("decode command register: %w", err)
	}
	if top == nil {
		return nil, ErrNotObject
	}
	reg := make(Register, len(top))
	for id, raw := range top {
		var e RegisterEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		reg[id] = e
	}
	return reg, nil
}
