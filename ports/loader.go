package ports

import (
	"context"

	"gowbic/domain/dataset"
)

// LoadOptions configures tabular dataset extraction
type LoadOptions struct {
	DatasetName      string   // label for the resulting dataset; defaults to the file name
	ResponseColumn   string   // header of the response column (required)
	TimeColumn       string   // optional timestamp column header
	RegressorColumns []string // empty means every remaining numeric column
	SheetName        string   // Excel only; empty means the first sheet
}

// DatasetLoaderPort builds a Dataset from an external tabular source
type DatasetLoaderPort interface {
	LoadDataset(ctx context.Context, path string, opts LoadOptions) (*dataset.Dataset, error)
}
