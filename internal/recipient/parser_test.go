package recipient

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParse_Spreadsheet(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Email", "Name", "City"},
		{"a@b.com", "Alice", "Seoul"},
		{"c@d.com", "Carol", "Busan"},
	})

	recipients, err := Parse(data, xlsxMIME, "people.xlsx")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(recipients) != 2 {
		t.Fatalf("Parse() count = %d, want 2", len(recipients))
	}

	first := recipients[0]
	if first.Email != "a@b.com" || first.Name != "Alice" {
		t.Errorf("Parse() first = %+v", first)
	}
	if first.Variables["City"] != "Seoul" {
		t.Errorf("Parse() first variables = %v, want City=Seoul", first.Variables)
	}
	if _, ok := first.Variables["Email"]; ok {
		t.Error("Parse() email column must not appear in variables")
	}
	if _, ok := first.Variables["Name"]; ok {
		t.Error("Parse() name column must not appear in variables")
	}

	if recipients[1].Email != "c@d.com" {
		t.Errorf("Parse() second = %+v", recipients[1])
	}
}

func TestParse_SpreadsheetColumnSynonyms(t *testing.T) {
	tests := []struct {
		name        string
		emailHeader string
		nameHeader  string
	}{
		{"lowercase", "email", "name"},
		{"uppercase", "EMAIL", "NAME"},
		{"hyphenated", "e-mail", "name"},
		{"korean", "이메일", "이름"},
		{"korean full name", "이메일", "성명"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildWorkbook(t, [][]interface{}{
				{tt.emailHeader, tt.nameHeader},
				{"a@b.com", "Alice"},
			})

			recipients, err := Parse(data, xlsxMIME, "people.xlsx")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(recipients) != 1 {
				t.Fatalf("Parse() count = %d, want 1", len(recipients))
			}
			if recipients[0].Email != "a@b.com" || recipients[0].Name != "Alice" {
				t.Errorf("Parse() = %+v", recipients[0])
			}
			if len(recipients[0].Variables) != 0 {
				t.Errorf("Parse() variables = %v, want none", recipients[0].Variables)
			}
		})
	}
}

func TestParse_SpreadsheetMissingEmail(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Email", "Name"},
		{"a@b.com", "Alice"},
		{"", "Bob"},
		{"c@d.com", "Carol"},
	})

	recipients, err := Parse(data, xlsxMIME, "people.xlsx")
	if err == nil {
		t.Fatal("Parse() expected error for row without email")
	}

	var missing *MissingEmailError
	if !errors.As(err, &missing) {
		t.Fatalf("Parse() error type = %T, want *MissingEmailError", err)
	}
	if missing.Row != 2 {
		t.Errorf("Parse() error row = %d, want 2", missing.Row)
	}
	if recipients != nil {
		t.Errorf("Parse() must not return partial results, got %d", len(recipients))
	}
}

func TestParse_SpreadsheetHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Email", "Name"},
	})

	recipients, err := Parse(data, xlsxMIME, "people.xlsx")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(recipients) != 0 {
		t.Errorf("Parse() count = %d, want 0", len(recipients))
	}
}

func TestParse_XMLShapes(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{
			name: "recipients wrapping recipient",
			xml: `<recipients>
				<recipient><email>a@b.com</email><name>Alice</name><city>Seoul</city></recipient>
				<recipient><email>c@d.com</email><name>Carol</name><city>Busan</city></recipient>
			</recipients>`,
		},
		{
			name: "recipients wrapping item",
			xml: `<recipients>
				<item><email>a@b.com</email><name>Alice</name><city>Seoul</city></item>
				<item><email>c@d.com</email><name>Carol</name><city>Busan</city></item>
			</recipients>`,
		},
		{
			name: "recipients wrapping person",
			xml: `<recipients>
				<person><email>a@b.com</email><name>Alice</name><city>Seoul</city></person>
				<person><email>c@d.com</email><name>Carol</name><city>Busan</city></person>
			</recipients>`,
		},
		{
			name: "root wrapping recipient",
			xml: `<root>
				<recipient><email>a@b.com</email><name>Alice</name><city>Seoul</city></recipient>
				<recipient><email>c@d.com</email><name>Carol</name><city>Busan</city></recipient>
			</root>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recipients, err := Parse([]byte(tt.xml), "application/xml", "people.xml")
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(recipients) != 2 {
				t.Fatalf("Parse() count = %d, want 2", len(recipients))
			}
			if recipients[0].Email != "a@b.com" || recipients[0].Name != "Alice" {
				t.Errorf("Parse() first = %+v", recipients[0])
			}
			if recipients[0].Variables["city"] != "Seoul" {
				t.Errorf("Parse() first variables = %v, want city=Seoul", recipients[0].Variables)
			}
			if recipients[1].Email != "c@d.com" {
				t.Errorf("Parse() second = %+v", recipients[1])
			}
		})
	}
}

func TestParse_XMLFallback(t *testing.T) {
	t.Run("bare root record", func(t *testing.T) {
		xml := `<person><email>a@b.com</email><name>Alice</name><city>Seoul</city></person>`

		recipients, err := Parse([]byte(xml), "application/xml", "people.xml")
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if len(recipients) != 1 || recipients[0].Email != "a@b.com" || recipients[0].Name != "Alice" {
			t.Errorf("Parse() = %+v, want one recipient a@b.com", recipients)
		}
		if recipients[0].Variables["city"] != "Seoul" {
			t.Errorf("Parse() variables = %v, want city=Seoul", recipients[0].Variables)
		}
	})

	// The fallback takes the first root element's value as-is, so an
	// unrecognized wrapper element yields a single record without an email.
	t.Run("unrecognized wrapper reports missing email", func(t *testing.T) {
		xml := `<subscribers>
			<entry><email>a@b.com</email><name>Alice</name></entry>
			<entry><email>c@d.com</email><name>Carol</name></entry>
		</subscribers>`

		_, err := Parse([]byte(xml), "application/xml", "people.xml")
		var me *MissingEmailError
		if !errors.As(err, &me) {
			t.Fatalf("Parse() error = %v, want MissingEmailError", err)
		}
		if me.Row != 1 {
			t.Errorf("MissingEmailError row = %d, want 1", me.Row)
		}
	})
}

func TestParse_XMLSingleRecord(t *testing.T) {
	xml := `<recipients><recipient><email>solo@b.com</email><name>Solo</name></recipient></recipients>`

	recipients, err := Parse([]byte(xml), "text/xml", "one.xml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(recipients) != 1 || recipients[0].Email != "solo@b.com" {
		t.Errorf("Parse() = %+v, want one recipient solo@b.com", recipients)
	}
}

func TestParse_XMLAttributesExcluded(t *testing.T) {
	xml := `<recipients>
		<recipient id="42" status="active"><email>a@b.com</email><plan>pro</plan></recipient>
	</recipients>`

	recipients, err := Parse([]byte(xml), "application/xml", "people.xml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(recipients) != 1 {
		t.Fatalf("Parse() count = %d, want 1", len(recipients))
	}

	vars := recipients[0].Variables
	if vars["plan"] != "pro" {
		t.Errorf("Parse() variables = %v, want plan=pro", vars)
	}
	for key := range vars {
		if key == "id" || key == "status" || key == "-id" || key == "-status" {
			t.Errorf("Parse() attribute key %q leaked into variables", key)
		}
	}
}

func TestParse_XMLMissingEmail(t *testing.T) {
	xml := `<recipients>
		<recipient><email>a@b.com</email></recipient>
		<recipient><name>NoMail</name></recipient>
	</recipients>`

	_, err := Parse([]byte(xml), "application/xml", "people.xml")

	var missing *MissingEmailError
	if !errors.As(err, &missing) {
		t.Fatalf("Parse() error = %v, want *MissingEmailError", err)
	}
	if missing.Row != 2 {
		t.Errorf("Parse() error row = %d, want 2", missing.Row)
	}
}

func TestParse_DispatchByExtension(t *testing.T) {
	// Unknown MIME type but a recognized extension routes to the XML parser.
	xml := `<recipients><recipient><email>a@b.com</email></recipient></recipients>`

	recipients, err := Parse([]byte(xml), "application/octet-stream", "upload.xml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(recipients) != 1 {
		t.Errorf("Parse() count = %d, want 1", len(recipients))
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse([]byte("name,email\nAlice,a@b.com"), "text/csv", "people.csv")

	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Parse() error = %v, want *UnsupportedFormatError", err)
	}
}

func TestParse_EmailTrimmed(t *testing.T) {
	xml := `<recipients><recipient><email>  a@b.com  </email><name>  Alice </name></recipient></recipients>`

	recipients, err := Parse([]byte(xml), "application/xml", "people.xml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if recipients[0].Email != "a@b.com" {
		t.Errorf("Parse() email = %q, want trimmed", recipients[0].Email)
	}
	if recipients[0].Name != "Alice" {
		t.Errorf("Parse() name = %q, want trimmed", recipients[0].Name)
	}
}
