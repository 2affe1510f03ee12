package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// buildDigest assembles a readable answer out of the raw tool
// observations when the model itself did not produce one. JSON object
// observations are unpacked field by field in document order; anything
// else is passed through verbatim. notes carries the model's
// intermediate commentary.
func buildDigest(responses []toolResponse, notes []string) string {
	var b strings.Builder
	b.WriteString("# 🎯 查詢結果\n")
	b.WriteString("根據您的查詢,以下是各工具執行結果:\n")

	for idx, tr := range responses {
		fmt.Fprintf(&b, "\n## %d. 【%s】\n", idx+1, tr.name)
		writeObservation(&b, tr.content)
		b.WriteString("\n---\n")
	}

	if len(notes) > 0 {
		b.WriteString("\n## 💡 補充說明:\n")
		for _, note := range notes {
			b.WriteString(note)
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n✅ 共執行了 %d 個工具,完成查詢。\n", len(responses))
	return b.String()
}

// writeObservation renders one observation. Only JSON objects get the
// structured treatment; retrieval observations are prose and are kept
// as-is.
func writeObservation(b *strings.Builder, content string) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
		b.WriteString(content)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		b.WriteString(content)
		return
	}
	if errValue, ok := fields["error"]; ok {
		fmt.Fprintf(b, "⚠️ 錯誤: %s\n", scalarText(errValue))
		return
	}

	for _, field := range objectFields(trimmed) {
		if strings.HasPrefix(field.key, "_") {
			continue
		}
		writeField(b, field.key, field.value)
	}
}

// writeField renders one top-level record field. Nested objects become
// indented entry lists, arrays stay in their JSON form, scalars become
// key = value lines.
func writeField(b *strings.Builder, key string, raw json.RawMessage) {
	value := bytes.TrimSpace(raw)
	switch {
	case len(value) > 0 && value[0] == '{':
		fmt.Fprintf(b, "\n**%s**:\n", key)
		for _, entry := range objectFields(string(value)) {
			fmt.Fprintf(b, "  - %s: %s\n", entry.key, scalarText(entry.value))
		}
	case len(value) > 0 && value[0] == '[':
		fmt.Fprintf(b, "**%s**: %s\n", key, string(value))
	default:
		fmt.Fprintf(b, "**%s** = %s\n", key, scalarText(value))
	}
}

type jsonField struct {
	key   string
	value json.RawMessage
}

// objectFields returns the fields of a JSON object in document order,
// which a plain map unmarshal would lose.
func objectFields(object string) []jsonField {
	dec := json.NewDecoder(strings.NewReader(object))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil
	}

	var fields []jsonField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fields
		}
		key, ok := tok.(string)
		if !ok {
			return fields
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fields
		}
		fields = append(fields, jsonField{key: key, value: raw})
	}
	return fields
}

// scalarText formats a raw JSON value for display: strings lose their
// quotes, everything else keeps its JSON spelling.
func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
