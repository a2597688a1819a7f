package validation

import "encoding/json"

// ParseStream восстанавливает последовательность JSON-объектов из склеенного текста.
//
// Никогда не возвращает ошибку: битые фрагменты молча отбрасываются, соседние сохраняются.
// Сначала вырезаются HTML-теги (CDN может отдать страницу ошибки вместо JSON), затем текст
// сканируется посимвольно: глубина скобок меняется только вне строковых литералов,
// строка открывается/закрывается неэкранированной кавычкой. Когда глубина возвращается в ноль,
// накопленный фрагмент разбирается как самостоятельный объект.
func ParseStream(text string) []map[string]any {
	cleaned := markupTag.ReplaceAllString(text, "")

	out := make([]map[string]any, 0)
	depth, start := 0, -1
	inString, escaped := false, false

	// Сканируем байты: в UTF-8 многобайтные символы не содержат ASCII '{', '}', '"', '\'
	for i := 0; i < len(cleaned); i++ {
		c := cleaned[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			// Кавычки вне объекта, мусор между объектами, строку не открываем
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				var obj map[string]any
				if err := json.Unmarshal([]byte(cleaned[start:i+1]), &obj); err == nil {
					out = append(out, obj)
				}
				start = -1
			}
		}
	}

	return out
}
