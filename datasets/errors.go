package datasets

import "errors"

var (
	// ErrEmptyDataset is returned when a dataset or a required partition has no samples.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrInvalidFraction is returned for split fractions outside the open interval (0, 1).
	ErrInvalidFraction = errors.New("invalid split fraction")
)
