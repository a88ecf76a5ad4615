package bank

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"agribank-quiz/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a comma separated question file. A leading UTF-8 BOM is ignored.
func ParseCSV(r io.Reader) (ParseResult, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return ParseResult{}, fmt.Errorf("read csv: %w", err)
	}
	return parseRows(rows)
}

// WriteCSV exports questions with a header row.
func WriteCSV(w io.Writer, questions []domain.Question) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, q := range questions {
		if err := writer.Write(questionRow(q)); err != nil {
			return fmt.Errorf("write csv row %s: %w", q.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
