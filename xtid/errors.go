package xtid

import (
	"errors"
	"fmt"
)

var (
	ErrKeyNotFound     = errors.New("xtid: verification key not found")
	ErrFramesNotFound  = errors.New("xtid: loading animation frames not found")
	ErrIndicesNotFound = errors.New("xtid: key byte indices not found")
	ErrFrameRow        = errors.New("xtid: frame row out of range")
	ErrInvalidDocument = errors.New("xtid: invalid html document")
	ErrNotInitialized  = errors.New("xtid: not initialized")
)

// ExtractionError reports which scraping step no longer matches the page.
type ExtractionError struct {
	Step string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Step, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func extractionErr(step string, err error) error {
	return &ExtractionError{Step: step, Err: err}
}
