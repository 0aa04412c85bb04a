// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mdhender/regsnap/model"
	"github.com/spf13/afero"
)

// LoadService decodes cached archives into a single unified table.
type LoadService struct {
	fs afero.Fs
}

// NewLoadService creates a new LoadService.
func NewLoadService() *LoadService {
	return &LoadService{fs: afero.NewOsFs()}
}

// SetFS sets the filesystem for testing.
func (s *LoadService) SetFS(fs afero.Fs) {
	s.fs = fs
}

// LoadSummary aggregates a load pass.
type LoadSummary struct {
	Archives int // archives that contributed rows
	Skipped  int // archives with no usable payload
}

// LoadAll reads every .zip archive under cacheDir in lexicographic
// filename order and concatenates their payloads into one table.
// Filename order is chronological order: both filename conventions
// zero-pad their date and part numbers, and that invariant is what makes
// the sort correct here.
//
// Each archive contributes its first .csv entry by listing order; an
// archive with no .csv entry is skipped silently, as is one that cannot
// be opened (a download that failed is absent, not an error). A missing
// cache directory or an all-skipped cache yields an empty table, which
// downstream stages treat as nothing to do.
func (s *LoadService) LoadAll(cacheDir string) (*model.Table, LoadSummary, error) {
	var summary LoadSummary

	exists, err := afero.DirExists(s.fs, cacheDir)
	if err != nil {
		return nil, summary, &ErrWriteFile{Op: "stat", Path: cacheDir, Err: err}
	}
	if !exists {
		return model.NewTable(nil), summary, nil
	}

	infos, err := afero.ReadDir(s.fs, cacheDir)
	if err != nil {
		return nil, summary, &ErrWriteFile{Op: "read", Path: cacheDir, Err: err}
	}

	var names []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".zip") {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)

	table := model.NewTable(nil)
	for _, name := range names {
		path := filepath.Join(cacheDir, name)
		columns, rows, err := s.loadArchive(path)
		if err != nil || columns == nil {
			summary.Skipped++
			continue
		}
		appendAligned(table, columns, rows)
		summary.Archives++
	}

	return table, summary, nil
}

// loadArchive extracts the first .csv payload from one zip archive.
// Returns nil columns if the archive holds no .csv entry.
func (s *LoadService) loadArchive(path string) ([]string, [][]string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, nil, &ErrArchive{Path: path, Err: err}
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, &ErrArchive{Path: path, Err: err}
	}

	// First match by listing order; the payload entry's position within
	// the archive is not specified by the upstream format.
	var payload *zip.File
	for _, entry := range zr.File {
		if strings.HasSuffix(entry.Name, ".csv") {
			payload = entry
			break
		}
	}
	if payload == nil {
		return nil, nil, nil
	}

	rc, err := payload.Open()
	if err != nil {
		return nil, nil, &ErrArchive{Path: path, Err: err}
	}
	defer rc.Close()

	return readCSV(rc)
}

// readCSV decodes a CSV stream as raw text. No type inference happens
// here: company numbers keep their leading zeros.
func readCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, record)
	}
	return columns, rows, nil
}

// appendAligned adds an archive's rows to the unified table. The first
// archive establishes the column set; later archives are aligned to it
// by column name, so a reordered header still lands in the right place.
func appendAligned(table *model.Table, columns []string, rows [][]string) {
	if len(table.Columns) == 0 {
		table.Columns = columns
		for _, row := range rows {
			table.Append(row)
		}
		return
	}

	index := make([]int, len(table.Columns))
	for i, want := range table.Columns {
		index[i] = -1
		for j, have := range columns {
			if have == want {
				index[i] = j
				break
			}
		}
	}

	for _, row := range rows {
		aligned := make([]string, len(table.Columns))
		for i, j := range index {
			if j >= 0 && j < len(row) {
				aligned[i] = row[j]
			}
		}
		table.Rows = append(table.Rows, aligned)
	}
}
