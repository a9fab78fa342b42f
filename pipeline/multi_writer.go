package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-asset-picker/models"
)

// MultiWriter fans every batch out to several writers in order.
type MultiWriter struct {
	writers []OutputWriter
}

// NewMultiWriter combines writers.
func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// NewDualWriter writes CSV to csvFilename and JSONL next to it.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	cw, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, err
	}
	jw, err := NewJSONWriter(jsonFilename)
	if err != nil {
		cw.Close()
		return nil, err
	}
	return NewMultiWriter(cw, jw), nil
}

// DualJSONPath derives the JSONL path that accompanies a CSV output.
func DualJSONPath(csvFilename string) string {
	return strings.TrimSuffix(csvFilename, ".csv") + ".jsonl"
}

// Write stops at the first writer that fails.
func (mw *MultiWriter) Write(records []*models.ImageRecord) error {
	for i, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

// Validate validates every writer and joins their errors.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Validate())
	}
	return errors.Join(errs...)
}
