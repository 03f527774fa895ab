package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gowbic/domain/core"
	"gowbic/domain/dataset"
	"gowbic/ports"

	"github.com/xuri/excelize/v2"
)

// TabularLoader reads Excel and CSV files into sweep-ready datasets
type TabularLoader struct{}

// NewTabularLoader creates a loader that dispatches on file extension
func NewTabularLoader() *TabularLoader {
	return &TabularLoader{}
}

// LoadDataset reads the file at path and extracts the response, regressor,
// and optional time columns named in opts. With no explicit regressor list
// every remaining numeric column becomes a regressor.
func (l *TabularLoader) LoadDataset(ctx context.Context, path string, opts ports.LoadOptions) (*dataset.Dataset, error) {
	if opts.ResponseColumn == "" {
		return nil, fmt.Errorf("%w: response column is required", core.ErrConfigInvalid)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("data file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))

	var rows [][]string
	var err error
	switch ext {
	case ".csv":
		rows, err = readCSVRows(path)
	case ".xlsx", ".xlsm":
		rows, err = readExcelRows(path, opts.SheetName)
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", core.ErrConfigInvalid, ext)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s has no data rows", core.ErrEmptyDataset, filepath.Base(path))
	}

	name := opts.DatasetName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	ds, err := buildDataset(name, rows, opts)
	if err != nil {
		return nil, err
	}

	log.Printf("[TabularLoader] %s processed (%d observations, %d regressors)",
		filepath.Base(path), ds.ObservationCount(), ds.RegressorCount())
	return ds, nil
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readExcelRows(path, sheetName string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheetName, err)
	}
	return rows, nil
}

// buildDataset converts raw string rows into a validated Dataset
func buildDataset(name string, rows [][]string, opts ports.LoadOptions) (*dataset.Dataset, error) {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.TrimSpace(header)
	}

	colIndex := make(map[string]int, len(headers))
	for i, header := range headers {
		if _, exists := colIndex[header]; !exists {
			colIndex[header] = i
		}
	}

	respIdx, ok := colIndex[opts.ResponseColumn]
	if !ok {
		return nil, fmt.Errorf("%w: response column %q not found (headers: %s)",
			core.ErrConfigInvalid, opts.ResponseColumn, strings.Join(headers, ", "))
	}

	timeIdx := -1
	if opts.TimeColumn != "" {
		timeIdx, ok = colIndex[opts.TimeColumn]
		if !ok {
			return nil, fmt.Errorf("%w: time column %q not found", core.ErrConfigInvalid, opts.TimeColumn)
		}
	}

	// Resolve which columns become regressors
	explicit := len(opts.RegressorColumns) > 0
	var candidateNames []string
	var candidateIdx []int
	if explicit {
		for _, colName := range opts.RegressorColumns {
			idx, found := colIndex[colName]
			if !found {
				return nil, fmt.Errorf("%w: regressor column %q not found", core.ErrConfigInvalid, colName)
			}
			if idx == respIdx {
				return nil, fmt.Errorf("%w: regressor %q is the response column", core.ErrConfigInvalid, colName)
			}
			candidateNames = append(candidateNames, colName)
			candidateIdx = append(candidateIdx, idx)
		}
	} else {
		for i, header := range headers {
			if i == respIdx || i == timeIdx || header == "" {
				continue
			}
			candidateNames = append(candidateNames, header)
			candidateIdx = append(candidateIdx, i)
		}
	}

	n := len(rows) - 1

	response := make([]float64, n)
	for i := 1; i < len(rows); i++ {
		raw := cellAt(rows[i], respIdx)
		if raw == "" {
			return nil, fmt.Errorf("row %d: response column %q is empty", i+1, opts.ResponseColumn)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: response value %q is not numeric", i+1, raw)
		}
		response[i-1] = value
	}

	// Parse candidate columns column-wise; in auto mode a column that fails
	// to parse is skipped rather than fatal
	var columns [][]float64
	var names []string
	for k, idx := range candidateIdx {
		column := make([]float64, n)
		var parseErr error
		for i := 1; i < len(rows); i++ {
			raw := cellAt(rows[i], idx)
			if raw == "" {
				parseErr = fmt.Errorf("row %d: column %q is empty", i+1, candidateNames[k])
				break
			}
			value, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				parseErr = fmt.Errorf("row %d: column %q value %q is not numeric", i+1, candidateNames[k], raw)
				break
			}
			column[i-1] = value
		}
		if parseErr != nil {
			if explicit {
				return nil, parseErr
			}
			log.Printf("[TabularLoader] skipping column %q: %v", candidateNames[k], parseErr)
			continue
		}
		columns = append(columns, column)
		names = append(names, candidateNames[k])
	}

	regressors := make([][]float64, n)
	for i := range regressors {
		row := make([]float64, len(columns))
		for j, column := range columns {
			row[j] = column[i]
		}
		regressors[i] = row
	}

	if timeIdx >= 0 {
		timeIndex := make([]time.Time, n)
		for i := 1; i < len(rows); i++ {
			t, err := parseTimeCell(cellAt(rows[i], timeIdx))
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			timeIndex[i-1] = t
		}
		return dataset.NewTimeSeries(name, timeIndex, response, regressors, names)
	}

	return dataset.New(name, response, regressors, names)
}

// cellAt tolerates short rows: Excel drops trailing empty cells
func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/06 15:04",
}

// parseTimeCell accepts common textual layouts plus Excel serial dates
func parseTimeCell(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("time cell is empty")
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		return excelize.ExcelDateToTime(serial, false)
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", raw)
}

// Ensure TabularLoader implements DatasetLoaderPort
var _ ports.DatasetLoaderPort = (*TabularLoader)(nil)
