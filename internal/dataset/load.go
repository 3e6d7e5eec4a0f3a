package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Options controls how a table is read.
type Options struct {
	// Delimiter for CSV. If 0, picked from the file extension (tab for .tsv, else comma).
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Sheet selects an XLSX worksheet by name; empty means the first sheet.
	Sheet string
	// MaxRows limits records read; 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns the options used by the CLI when no flags are given.
func DefaultOptions() Options {
	return Options{}
}

// Load reads a .csv, .tsv or .xlsx file.
func Load(path string, opt Options) (*Dataset, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadXLSX(path, opt)
	}
	return LoadCSV(path, opt)
}

// LoadCSV reads a delimited file with a header row.
func LoadCSV(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	return ReadCSV(f, filepath.Base(path), opt)
}

// ReadCSV reads delimited records from r. An empty input yields an empty Dataset.
func ReadCSV(r io.Reader, name string, opt Options) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if opt.Delimiter != 0 {
		cr.Comma = opt.Delimiter
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(name, nil, nil, opt), nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	var records [][]string
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(records)+1, err)
		}
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		records = append(records, rec)
	}
	return New(name, header, records, opt), nil
}

// LoadXLSX reads the selected worksheet; the first row is the header.
func LoadXLSX(path string, opt Options) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook '%s' has no sheets", filepath.Base(path))
	}
	sheet := sheets[0]
	if opt.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opt.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return nil, fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
				opt.Sheet, filepath.Base(path), strings.Join(sheets, ", "))
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	name := filepath.Base(path)
	if len(rows) == 0 {
		return New(name, nil, nil, opt), nil
	}
	records := rows[1:]
	if opt.MaxRows > 0 && len(records) > opt.MaxRows {
		records = records[:opt.MaxRows]
	}
	return New(name, rows[0], records, opt), nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
