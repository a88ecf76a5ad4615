package bank

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"agribank-quiz/internal/domain"
)

// SheetName is the worksheet written on export. Import reads the first sheet whatever its name.
const SheetName = "Questions"

// ParseXLSX reads the first worksheet of an Excel workbook.
func ParseXLSX(r io.Reader) (ParseResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ParseResult{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ParseResult{}, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return ParseResult{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseRows(rows)
}

// WriteXLSX exports questions to a single-sheet workbook.
func WriteXLSX(w io.Writer, questions []domain.Question) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := setRow(f, 1, Columns); err != nil {
		return err
	}
	for i, q := range questions {
		if err := setRow(f, i+2, questionRow(q)); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return fmt.Errorf("row %d: %w", n, err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
		return fmt.Errorf("set row %d: %w", n, err)
	}
	return nil
}
