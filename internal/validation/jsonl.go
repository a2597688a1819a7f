package validation

import (
	"bufio"
	"bytes"
	"encoding/json"
)

// maxLineSize: верхняя граница одной JSONL-строки.
const maxLineSize = 4 << 20

// ParseLines разбирает JSONL, где источник гарантирует разделение переводом строки.
// Пустые и битые строки отбрасываются, dropped: число отброшенных непустых строк.
func ParseLines(data []byte) (objects []map[string]any, dropped int) {
	objects = make([]map[string]any, 0)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil || obj == nil {
			dropped++
			continue
		}
		objects = append(objects, obj)
	}
	// Строка длиннее maxLineSize обрывает сканер; то, что успели прочитать, сохраняем
	if sc.Err() != nil {
		dropped++
	}
	return objects, dropped
}
