package recipient

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clbanning/mxj/v2"
	"github.com/xuri/excelize/v2"
)

// Column synonyms recognized during import, matched case-insensitively.
var (
	emailKeys = []string{"email", "이메일", "e-mail"}
	nameKeys  = []string{"name", "이름", "성명"}
)

// format pairs a detection predicate with its parser. Formats are tried in
// order; the first match wins.
type format struct {
	match func(mimeType, ext string) bool
	parse func(data []byte) ([]Recipient, error)
}

var formats = []format{
	{
		match: func(mimeType, ext string) bool {
			return strings.Contains(mimeType, "spreadsheet") || ext == "xlsx" || ext == "xls"
		},
		parse: parseSpreadsheet,
	},
	{
		match: func(mimeType, ext string) bool {
			return strings.Contains(mimeType, "xml") || ext == "xml"
		},
		parse: parseXML,
	},
}

// Parse converts an uploaded recipient file into a list of recipients.
// The format is detected by declared MIME type first, file extension second.
// A record without a usable email address aborts the whole parse.
func Parse(data []byte, mimeType, filename string) ([]Recipient, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	for _, f := range formats {
		if f.match(mimeType, ext) {
			return f.parse(data)
		}
	}

	return nil, &UnsupportedFormatError{MIMEType: mimeType, Filename: filename}
}

// field is one key/value cell of a parsed record, in source order.
type field struct {
	key   string
	value string
}

// parseSpreadsheet reads the first sheet of an xlsx workbook. The first row
// is the header; every column that is not a recognized email or name column
// becomes a variable keyed by its original header text.
func parseSpreadsheet(data []byte) ([]Recipient, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	var recipients []Recipient
	n := 0

	for _, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		n++

		var fields []field
		for col, key := range header {
			if key == "" || col >= len(row) || row[col] == "" {
				continue
			}
			fields = append(fields, field{key: key, value: row[col]})
		}

		rec, err := buildRecipient(fields, n)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}

	return recipients, nil
}

// parseXML reads recipients from a small set of known nesting shapes:
// <recipients> wrapping repeated <recipient>/<item>/<person> elements, a
// repeated top-level <recipient>, <root><recipient>, or as a last resort the
// value of the first top-level element. The fallback is deliberately
// permissive, matching the accepted upload shapes.
func parseXML(data []byte) ([]Recipient, error) {
	mv, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}

	records := findRecords(map[string]interface{}(mv))

	var recipients []Recipient
	for i, raw := range records {
		rec, ok := raw.(map[string]interface{})
		if !ok {
			return nil, &MissingEmailError{Row: i + 1}
		}

		r, err := buildRecipient(xmlFields(rec), i+1)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}

	return recipients, nil
}

func findRecords(m map[string]interface{}) []interface{} {
	if wrap, ok := m["recipients"].(map[string]interface{}); ok {
		var items interface{}
		for _, key := range []string{"recipient", "item", "person"} {
			if v, ok := wrap[key]; ok {
				items = v
				break
			}
		}
		return toSlice(items)
	}

	if v, ok := m["recipient"]; ok {
		return toSlice(v)
	}

	if root, ok := m["root"].(map[string]interface{}); ok {
		if v, ok := root["recipient"]; ok {
			return toSlice(v)
		}
	}

	// Fallback: take the first top-level element's value. XML documents have
	// a single root, so the sort only matters for malformed input.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return toSlice(m[keys[0]])
}

func toSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return s
	}
	return []interface{}{v}
}

// xmlFields converts an XML record to ordered key/value fields. Attribute
// keys (mxj marks them with a leading "-") and the element text key are
// excluded; nested elements contribute their text content when present.
func xmlFields(rec map[string]interface{}) []field {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []field
	for _, k := range keys {
		if strings.HasPrefix(k, "-") || k == "#text" {
			continue
		}
		v, ok := stringify(rec[k])
		if !ok {
			continue
		}
		fields = append(fields, field{key: k, value: v})
	}
	return fields
}

func stringify(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case map[string]interface{}:
		if text, ok := val["#text"]; ok {
			return stringify(text)
		}
		return "", false
	case nil:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}

// buildRecipient extracts email and name by synonym lookup and collects all
// remaining fields as variables. row is the 1-based record index used for
// error attribution.
func buildRecipient(fields []field, row int) (Recipient, error) {
	emailVal := strings.TrimSpace(findField(fields, emailKeys))
	if emailVal == "" {
		return Recipient{}, &MissingEmailError{Row: row}
	}
	nameVal := strings.TrimSpace(findField(fields, nameKeys))

	var vars map[string]string
	for _, f := range fields {
		if reservedKey(f.key) {
			continue
		}
		if vars == nil {
			vars = make(map[string]string)
		}
		vars[f.key] = f.value
	}

	return Recipient{Email: emailVal, Name: nameVal, Variables: vars}, nil
}

// findField returns the value of the first field whose key matches one of
// the candidate synonyms, case-insensitively.
func findField(fields []field, candidates []string) string {
	for _, want := range candidates {
		for _, f := range fields {
			if strings.ToLower(f.key) == want {
				return f.value
			}
		}
	}
	return ""
}

func reservedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range emailKeys {
		if lower == k {
			return true
		}
	}
	for _, k := range nameKeys {
		if lower == k {
			return true
		}
	}
	return false
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
