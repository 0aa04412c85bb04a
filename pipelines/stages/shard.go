// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mdhender/regsnap/model"
	"github.com/spf13/afero"
)

// ShardService partitions a cleaned table into fixed-size shards and
// persists each as an independently loadable unit.
type ShardService struct {
	fs afero.Fs
}

// NewShardService creates a new ShardService.
func NewShardService() *ShardService {
	return &ShardService{fs: afero.NewOsFs()}
}

// SetFS sets the filesystem for testing.
func (s *ShardService) SetFS(fs afero.Fs) {
	s.fs = fs
}

// shardMeta is the sidecar written next to each shard's data file.
type shardMeta struct {
	Index    int      `json:"index"`
	StartRow int      `json:"startRow"`
	EndRow   int      `json:"endRow"`
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
}

// dataFile and metaFile are the fixed names inside each shard directory.
const (
	dataFile = "data.csv"
	metaFile = "shard.json"
)

// ShardDirName returns the directory name for a zero-based shard index.
// The fixed-width zero-padded form makes shard order recoverable from a
// plain directory listing.
func ShardDirName(index int) string {
	return fmt.Sprintf("part_%05d", index)
}

// Write partitions the table into consecutive ranges of shardSize rows
// and persists each under outDir. Every shard except possibly the last
// holds exactly shardSize rows; an exact multiple produces no trailing
// empty shard. Shard boundaries are a pure function of row count and
// shard size, so re-running over identical input reproduces them.
func (s *ShardService) Write(t *model.Table, outDir string, shardSize int) ([]model.ShardRange, error) {
	if shardSize < 1 {
		return nil, fmt.Errorf("shard size must be positive, got %d", shardSize)
	}
	if err := s.fs.MkdirAll(outDir, 0755); err != nil {
		return nil, &ErrWriteFile{Op: "mkdir", Path: outDir, Err: err}
	}

	var shards []model.ShardRange
	total := t.Len()
	for start := 0; start < total; start += shardSize {
		end := start + shardSize
		if end > total {
			end = total
		}
		index := start / shardSize
		dir := filepath.Join(outDir, ShardDirName(index))
		if err := s.writeShard(t.Slice(start, end), dir, index, start, end-1); err != nil {
			return shards, err
		}
		shards = append(shards, model.ShardRange{
			Index:    index,
			StartRow: start,
			EndRow:   end - 1,
			Rows:     end - start,
			Dir:      dir,
		})
	}
	return shards, nil
}

func (s *ShardService) writeShard(t *model.Table, dir string, index, startRow, endRow int) error {
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return &ErrWriteFile{Op: "mkdir", Path: dir, Err: err}
	}

	dataPath := filepath.Join(dir, dataFile)
	f, err := s.fs.Create(dataPath)
	if err != nil {
		return &ErrWriteFile{Op: "create", Path: dataPath, Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		f.Close()
		return &ErrWriteFile{Op: "write", Path: dataPath, Err: err}
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return &ErrWriteFile{Op: "write", Path: dataPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ErrWriteFile{Op: "close", Path: dataPath, Err: err}
	}

	meta := shardMeta{
		Index:    index,
		StartRow: startRow,
		EndRow:   endRow,
		Rows:     t.Len(),
		Columns:  t.Columns,
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	metaPath := filepath.Join(dir, metaFile)
	if err := afero.WriteFile(s.fs, metaPath, append(data, '\n'), 0644); err != nil {
		return &ErrWriteFile{Op: "write", Path: metaPath, Err: err}
	}
	return nil
}

// ReadShard loads one shard directory back into a table.
func (s *ShardService) ReadShard(dir string) (*model.Table, error) {
	dataPath := filepath.Join(dir, dataFile)
	f, err := s.fs.Open(dataPath)
	if err != nil {
		return nil, &ErrWriteFile{Op: "read", Path: dataPath, Err: err}
	}
	defer f.Close()

	columns, rows, err := readCSV(f)
	if err != nil {
		return nil, &ErrArchive{Path: dataPath, Err: err}
	}
	table := model.NewTable(columns)
	for _, row := range rows {
		table.Append(row)
	}
	return table, nil
}
