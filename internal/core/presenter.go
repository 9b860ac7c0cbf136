package core

import (
	"unicode"
	"unicode/utf8"

	"github.com/seckatie/videfly/internal/core/backend"
)

// Row is one label/value line of the metadata block.
type Row struct {
	Label string
	Value string
}

// Rows turns a metadata record into display rows, in record order.
func Rows(md backend.Metadata) []Row {
	rows := make([]Row, 0, len(md))
	for _, f := range md {
		rows = append(rows, Row{Label: Label(f.Name), Value: f.Value})
	}
	return rows
}

// Label upper-cases the first character of a field name and keeps the rest
// as is, so frameRate becomes FrameRate.
func Label(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
