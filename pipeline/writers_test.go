package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-asset-picker/config"
	"github.com/aluiziolira/go-asset-picker/models"
)

var sample = models.NewImageRecord(models.ImageItem{
	Filename: "big sword.png",
	Src:      "http://example.test/public/weapon/big%20sword.png",
}, "crawl-1", "http://example.test/public/weapon/")

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "images.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.ImageRecord{sample}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if writer.Written() != 1 {
		t.Fatalf("written=%d, want 1", writer.Written())
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if strings.Join(records[0], ",") != "crawl_id,folder,filename,src" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	want := []string{sample.CrawlID, sample.Folder, sample.Filename, sample.Src}
	if strings.Join(records[1], "|") != strings.Join(want, "|") {
		t.Fatalf("record=%v, want %v", records[1], want)
	}
}

func TestCSVWriterValidateCountsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.csv")
	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write([]*models.ImageRecord{sample, sample}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	// Drop the last row behind the writer's back.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.SplitAfter(string(data), "\n")
	if err := os.WriteFile(path, []byte(strings.Join(lines[:2], "")), 0o644); err != nil {
		t.Fatalf("truncate csv: %v", err)
	}

	if err := writer.Validate(); err == nil || !strings.Contains(err.Error(), "1 records on disk, 2 written") {
		t.Fatalf("validate = %v, want record count mismatch", err)
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "images.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write([]*models.ImageRecord{sample, sample}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		var decoded map[string]string
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		if decoded["crawl_id"] != "crawl-1" || decoded["folder"] != sample.Folder || decoded["filename"] != sample.Filename {
			t.Fatalf("decoded=%v", decoded)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if count != 2 {
		t.Fatalf("json lines=%d, want 2", count)
	}
}

func TestJSONWriterValidateRejectsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.jsonl")
	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write([]*models.ImageRecord{sample}); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"crawl_id":"crawl-1"}`+"\n"), 0o644); err != nil {
		t.Fatalf("overwrite json: %v", err)
	}
	if err := writer.Validate(); err == nil || !strings.Contains(err.Error(), "lacks filename") {
		t.Fatalf("validate = %v, want missing filename error", err)
	}
}

func TestWritersValidateEmptyCrawl(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		open func() (OutputWriter, error)
	}{
		{name: "csv", open: func() (OutputWriter, error) { return NewCSVWriter(filepath.Join(dir, "empty.csv")) }},
		{name: "json", open: func() (OutputWriter, error) { return NewJSONWriter(filepath.Join(dir, "empty.jsonl")) }},
		{name: "dual", open: func() (OutputWriter, error) {
			csvPath := filepath.Join(dir, "dual.csv")
			return NewDualWriter(csvPath, DualJSONPath(csvPath))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer, err := tt.open()
			if err != nil {
				t.Fatalf("create writer: %v", err)
			}
			p := NewPipeline(context.Background(), writer, config.DefaultConfig())
			p.Start(1)
			if err := p.ProcessResult(&models.CrawlResult{CrawlID: "empty"}); err != nil {
				t.Fatalf("process: %v", err)
			}
			if err := p.Close(); err != nil {
				t.Fatalf("close pipeline: %v", err)
			}
			if err := writer.Validate(); err != nil {
				t.Fatalf("validate empty crawl: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("close writer: %v", err)
			}
		})
	}
}

func TestDualWriterWrite(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "images.csv")
	jsonPath := DualJSONPath(csvPath)
	if jsonPath != filepath.Join(dir, "images.jsonl") {
		t.Fatalf("json path = %q", jsonPath)
	}

	writer, err := NewDualWriter(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write([]*models.ImageRecord{sample}); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}
