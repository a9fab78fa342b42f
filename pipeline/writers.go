package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/aluiziolira/go-asset-picker/models"
)

// csvHeader is the column order of CSV output.
var csvHeader = []string{"crawl_id", "folder", "filename", "src"}

// outputFile is an output path plus how many records went into it.
type outputFile struct {
	path    string
	file    *os.File
	written int
}

func createOutput(path string) (*outputFile, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &outputFile{path: path, file: f}, nil
}

// reopen opens the output for reading back what was written.
func (o *outputFile) reopen() (*os.File, error) {
	f, err := os.Open(o.path)
	if err != nil {
		return nil, fmt.Errorf("reopen %s: %w", o.path, err)
	}
	return f, nil
}

// CSVWriter writes one row per image under a fixed header.
type CSVWriter struct {
	mu  sync.Mutex
	out *outputFile
	csv *csv.Writer
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	out, err := createOutput(filename)
	if err != nil {
		return nil, err
	}
	cw := &CSVWriter{out: out, csv: csv.NewWriter(out.file)}
	if err := cw.flushRows([][]string{csvHeader}); err != nil {
		out.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends records and flushes them to disk.
func (cw *CSVWriter) Write(records []*models.ImageRecord) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.CrawlID, r.Folder, r.Filename, r.Src})
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if err := cw.flushRows(rows); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	cw.out.written += len(records)
	return nil
}

func (cw *CSVWriter) flushRows(rows [][]string) error {
	if err := cw.csv.WriteAll(rows); err != nil {
		return err
	}
	return cw.csv.Error()
}

// Written reports how many records were written.
func (cw *CSVWriter) Written() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.out.written
}

// Close flushes and closes the file.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.csv.Flush()
	if err := cw.csv.Error(); err != nil {
		cw.out.file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return cw.out.file.Close()
}

// Validate reads the file back: the header must lead and the row count must
// match what was written. A header-only file is valid.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	f, err := cw.out.reopen()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("read back csv: %w", err)
	}
	if len(rows) == 0 || !slices.Equal(rows[0], csvHeader) {
		return fmt.Errorf("csv %s: header missing", cw.out.path)
	}
	if got := len(rows) - 1; got != cw.out.written {
		return fmt.Errorf("csv %s: %d records on disk, %d written", cw.out.path, got, cw.out.written)
	}
	return nil
}

// JSONWriter writes one JSON object per line.
type JSONWriter struct {
	mu  sync.Mutex
	out *outputFile
	buf *bufio.Writer
	enc *json.Encoder
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	out, err := createOutput(filename)
	if err != nil {
		return nil, err
	}
	buf := bufio.NewWriter(out.file)
	return &JSONWriter{out: out, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Write appends records and flushes them to disk.
func (jw *JSONWriter) Write(records []*models.ImageRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range records {
		if err := jw.enc.Encode(r); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json: %w", err)
	}
	jw.out.written += len(records)
	return nil
}

// Written reports how many records were written.
func (jw *JSONWriter) Written() int {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.out.written
}

// Close flushes and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	if err := jw.buf.Flush(); err != nil {
		jw.out.file.Close()
		return fmt.Errorf("flush json: %w", err)
	}
	return jw.out.file.Close()
}

// Validate decodes the file back: every line must be a record with a
// filename and src, and the count must match what was written. An empty
// file is valid when nothing was written.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	f, err := jw.out.reopen()
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	count := 0
	for {
		var r models.ImageRecord
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("json %s: record %d: %w", jw.out.path, count+1, err)
		}
		if r.Filename == "" || r.Src == "" {
			return fmt.Errorf("json %s: record %d lacks filename or src", jw.out.path, count+1)
		}
		count++
	}
	if count != jw.out.written {
		return fmt.Errorf("json %s: %d records on disk, %d written", jw.out.path, count, jw.out.written)
	}
	return nil
}
