// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/mdhender/regsnap/model"
	"github.com/spf13/afero"
)

// userAgent matches what the registry's download site expects from
// interactive clients; the default Go UA gets some requests rejected.
const userAgent = "Mozilla/5.0"

// FetchService downloads archives into a local cache directory.
// A file already present in the cache is treated as complete and is
// never re-fetched; presence is the sole idempotence signal.
type FetchService struct {
	client  *http.Client
	baseURL string
	fs      afero.Fs
}

// NewFetchService creates a new FetchService for the given base URL.
// A nil client falls back to http.DefaultClient.
func NewFetchService(client *http.Client, baseURL string) *FetchService {
	if client == nil {
		client = http.DefaultClient
	}
	return &FetchService{
		client:  client,
		baseURL: baseURL,
		fs:      afero.NewOsFs(),
	}
}

// SetFS sets the filesystem for testing.
func (s *FetchService) SetFS(fs afero.Fs) {
	s.fs = fs
}

// FetchResult is the outcome of fetching one archive.
type FetchResult struct {
	Descriptor model.ArchiveDescriptor
	Cached     bool  // satisfied from the cache, no network call
	Err        error // nil on success
}

// Status returns the manifest status string for this result.
func (r FetchResult) Status() string {
	switch {
	case r.Err != nil:
		return model.ArchiveStatusFailed
	case r.Cached:
		return model.ArchiveStatusCached
	default:
		return model.ArchiveStatusFetched
	}
}

// FetchSummary aggregates a fetch batch.
type FetchSummary struct {
	Fetched int
	Cached  int
	Failed  int
}

// FetchFile retrieves one archive into cacheDir. If the destination file
// already exists the call is a cache hit and no request is made. The
// body streams to a temp file which is renamed into place only on
// success, so an interrupted or failed download never leaves a partial
// file that would later be mistaken for a complete archive.
func (s *FetchService) FetchFile(ctx context.Context, desc model.ArchiveDescriptor, cacheDir string) (cached bool, err error) {
	dest := filepath.Join(cacheDir, desc.Filename)

	exists, err := afero.Exists(s.fs, dest)
	if err != nil {
		return false, &ErrWriteFile{Op: "stat", Path: dest, Err: err}
	}
	if exists {
		return true, nil
	}

	if err := s.fs.MkdirAll(cacheDir, 0755); err != nil {
		return false, &ErrWriteFile{Op: "mkdir", Path: cacheDir, Err: err}
	}

	url := s.baseURL + "/" + desc.Filename
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &ErrFetchFile{Filename: desc.Filename, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, &ErrFetchFile{Filename: desc.Filename, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, &ErrFetchFile{Filename: desc.Filename, StatusCode: resp.StatusCode}
	}

	tmp := dest + ".partial"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return false, &ErrWriteFile{Op: "create", Path: tmp, Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return false, &ErrFetchFile{Filename: desc.Filename, Err: err}
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(tmp)
		return false, &ErrWriteFile{Op: "close", Path: tmp, Err: err}
	}
	if err := s.fs.Rename(tmp, dest); err != nil {
		s.fs.Remove(tmp)
		return false, &ErrWriteFile{Op: "rename", Path: dest, Err: err}
	}

	return false, nil
}

// FetchAll fetches each descriptor in order, one at a time. A failed
// fetch is recorded and the batch continues; the failed archive is
// simply absent from the cache until a later run retries it. There is
// no automatic per-file retry.
func (s *FetchService) FetchAll(ctx context.Context, descs []model.ArchiveDescriptor, cacheDir string) ([]FetchResult, FetchSummary) {
	results := make([]FetchResult, 0, len(descs))
	var summary FetchSummary
	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			results = append(results, FetchResult{
				Descriptor: desc,
				Err:        &ErrFetchFile{Filename: desc.Filename, Err: err},
			})
			summary.Failed++
			continue
		}
		cached, err := s.FetchFile(ctx, desc, cacheDir)
		results = append(results, FetchResult{Descriptor: desc, Cached: cached, Err: err})
		switch {
		case err != nil:
			summary.Failed++
		case cached:
			summary.Cached++
		default:
			summary.Fetched++
		}
	}
	return results, summary
}

// String summarizes the batch for progress output.
func (s FetchSummary) String() string {
	return fmt.Sprintf("%d fetched, %d cached, %d failed", s.Fetched, s.Cached, s.Failed)
}
