// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages_test

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/mdhender/regsnap/pipelines/stages"
	"github.com/spf13/afero"
)

// writeZip builds a zip archive on the test filesystem with the given
// entry names and contents, in order.
func writeZip(t *testing.T, fs afero.Fs, path string, entries map[string]string, order []string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write zip file: %v", err)
	}
}

func TestLoadService_ConcatenatesInFilenameOrder(t *testing.T) {
	fs := afero.NewMemMapFs()

	// Written out of order on purpose; the loader must sort by filename.
	writeZip(t, fs, "/cache/data-part2_2.zip",
		map[string]string{"b.csv": "CompanyName,CompanyNumber\nBravo Ltd,00000002\n"},
		[]string{"b.csv"})
	writeZip(t, fs, "/cache/data-part1_2.zip",
		map[string]string{"a.csv": "CompanyName,CompanyNumber\nAlpha Ltd,00000001\n"},
		[]string{"a.csv"})

	svc := stages.NewLoadService()
	svc.SetFS(fs)

	table, summary, err := svc.LoadAll("/cache")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if summary.Archives != 2 {
		t.Errorf("expected 2 archives loaded, got %d", summary.Archives)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	if table.Rows[0][0] != "Alpha Ltd" || table.Rows[1][0] != "Bravo Ltd" {
		t.Errorf("rows out of order: %v", table.Rows)
	}
	// Leading zeros survive: values load as raw text.
	if table.Rows[0][1] != "00000001" {
		t.Errorf("expected leading zeros preserved, got %q", table.Rows[0][1])
	}
}

func TestLoadService_FirstCSVEntryByListingOrder(t *testing.T) {
	fs := afero.NewMemMapFs()

	writeZip(t, fs, "/cache/data.zip",
		map[string]string{
			"readme.txt": "not tabular",
			"one.csv":    "CompanyName\nFirst Ltd\n",
			"two.csv":    "CompanyName\nSecond Ltd\n",
		},
		[]string{"readme.txt", "one.csv", "two.csv"})

	svc := stages.NewLoadService()
	svc.SetFS(fs)

	table, _, err := svc.LoadAll("/cache")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if table.Len() != 1 || table.Rows[0][0] != "First Ltd" {
		t.Errorf("expected only the first csv entry, got %v", table.Rows)
	}
}

func TestLoadService_ArchiveWithoutPayloadIsSkipped(t *testing.T) {
	fs := afero.NewMemMapFs()

	writeZip(t, fs, "/cache/a.zip",
		map[string]string{"data.csv": "CompanyName\nKept Ltd\n"},
		[]string{"data.csv"})
	writeZip(t, fs, "/cache/b.zip",
		map[string]string{"readme.txt": "no payload"},
		[]string{"readme.txt"})
	// Not a zip at all; also skipped rather than fatal.
	if err := afero.WriteFile(fs, "/cache/c.zip", []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	svc := stages.NewLoadService()
	svc.SetFS(fs)

	table, summary, err := svc.LoadAll("/cache")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if summary.Archives != 1 || summary.Skipped != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if table.Len() != 1 {
		t.Errorf("expected 1 row, got %d", table.Len())
	}
}

func TestLoadService_MissingDirYieldsEmptyTable(t *testing.T) {
	svc := stages.NewLoadService()
	svc.SetFS(afero.NewMemMapFs())

	table, summary, err := svc.LoadAll("/no/such/dir")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if !table.Empty() {
		t.Errorf("expected empty table, got %d rows", table.Len())
	}
	if summary.Archives != 0 {
		t.Errorf("expected no archives, got %d", summary.Archives)
	}
}

func TestLoadService_AlignsColumnsByName(t *testing.T) {
	fs := afero.NewMemMapFs()

	writeZip(t, fs, "/cache/a.zip",
		map[string]string{"a.csv": "CompanyName,CompanyNumber\nAlpha Ltd,00000001\n"},
		[]string{"a.csv"})
	// Second archive reverses the columns; values must still line up.
	writeZip(t, fs, "/cache/b.zip",
		map[string]string{"b.csv": "CompanyNumber,CompanyName\n00000002,Bravo Ltd\n"},
		[]string{"b.csv"})

	svc := stages.NewLoadService()
	svc.SetFS(fs)

	table, _, err := svc.LoadAll("/cache")
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	if table.Rows[1][0] != "Bravo Ltd" || table.Rows[1][1] != "00000002" {
		t.Errorf("misaligned row: %v", table.Rows[1])
	}
}
