package loader

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gowbic/domain/core"
	"gowbic/ports"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
)

const salesCSV = `date,sales,price,promo,region
2024-01-01,120.5,9.99,1,north
2024-01-02,118.0,9.99,0,north
2024-01-03,131.25,8.49,1,south
`

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return path
}

func TestLoadCSVDataset(t *testing.T) {
	path := writeTempCSV(t, "sales.csv", salesCSV)

	ds, err := NewTabularLoader().LoadDataset(context.Background(), path, ports.LoadOptions{
		ResponseColumn: "sales",
		TimeColumn:     "date",
	})
	assert.NoError(t, err)

	assert.Equal(t, "sales", ds.Name())
	assert.Equal(t, 3, ds.ObservationCount())
	assert.Equal(t, []float64{120.5, 118.0, 131.25}, ds.Response())

	// region is not numeric, so auto-selection keeps only price and promo
	assert.Equal(t, []string{"price", "promo"}, ds.RegressorNames())
	assert.Equal(t, []float64{9.99, 1.0}, ds.Row(0))

	assert.True(t, ds.HasTimeIndex())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ds.TimeIndex()[0])

	assert.InDelta(t, 1.0/math.Log(3.0), ds.Temperature(), 1e-12)
	assert.NotEmpty(t, string(ds.Fingerprint()))
}

func TestLoadCSVExplicitRegressors(t *testing.T) {
	path := writeTempCSV(t, "sales.csv", salesCSV)

	ds, err := NewTabularLoader().LoadDataset(context.Background(), path, ports.LoadOptions{
		DatasetName:      "promo-study",
		ResponseColumn:   "sales",
		RegressorColumns: []string{"promo"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "promo-study", ds.Name())
	assert.Equal(t, []string{"promo"}, ds.RegressorNames())
	assert.Equal(t, 1, ds.RegressorCount())

	// Explicitly requesting a non-numeric column is an error, not a skip
	_, err = NewTabularLoader().LoadDataset(context.Background(), path, ports.LoadOptions{
		ResponseColumn:   "sales",
		RegressorColumns: []string{"region"},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}

func TestLoadExcelDataset(t *testing.T) {
	f := excelize.NewFile()
	headers := []string{"y", "x1", "x2"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue("Sheet1", cell, header)
	}
	data := [][]float64{
		{12.5, 1.0, 3.2},
		{9.75, 0.0, 2.8},
		{14.0, 1.0, 4.1},
	}
	for r, row := range data {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			f.SetCellValue("Sheet1", cell, value)
		}
	}

	path := filepath.Join(t.TempDir(), "observations.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save fixture workbook: %v", err)
	}
	f.Close()

	ds, err := NewTabularLoader().LoadDataset(context.Background(), path, ports.LoadOptions{
		ResponseColumn: "y",
	})
	assert.NoError(t, err)
	assert.Equal(t, "observations", ds.Name())
	assert.Equal(t, []float64{12.5, 9.75, 14.0}, ds.Response())
	assert.Equal(t, []string{"x1", "x2"}, ds.RegressorNames())
	assert.False(t, ds.HasTimeIndex())
}

func TestLoadValidation(t *testing.T) {
	path := writeTempCSV(t, "sales.csv", salesCSV)
	headerOnly := writeTempCSV(t, "empty.csv", "date,sales\n")

	loader := NewTabularLoader()
	ctx := context.Background()

	_, err := loader.LoadDataset(ctx, path, ports.LoadOptions{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = loader.LoadDataset(ctx, path, ports.LoadOptions{ResponseColumn: "revenue"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = loader.LoadDataset(ctx, path, ports.LoadOptions{ResponseColumn: "sales", TimeColumn: "ts"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	jsonPath := writeTempCSV(t, "data.json", `{"sales": []}`)
	_, err = loader.LoadDataset(ctx, jsonPath, ports.LoadOptions{ResponseColumn: "sales"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = loader.LoadDataset(ctx, filepath.Join(t.TempDir(), "missing.csv"), ports.LoadOptions{ResponseColumn: "sales"})
	assert.Error(t, err)

	_, err = loader.LoadDataset(ctx, headerOnly, ports.LoadOptions{ResponseColumn: "sales"})
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestParseTimeCell(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2024-03-05", "03/05/2024", "45356"} {
		got, err := parseTimeCell(raw)
		assert.NoError(t, err, "parse %q", raw)
		assert.True(t, got.Equal(want), "parse %q gave %v", raw, got)
	}

	withClock, err := parseTimeCell("2024-03-05 14:30:00")
	assert.NoError(t, err)
	assert.Equal(t, 14, withClock.Hour())

	_, err = parseTimeCell("not-a-date")
	assert.Error(t, err)

	_, err = parseTimeCell("")
	assert.Error(t, err)
}
