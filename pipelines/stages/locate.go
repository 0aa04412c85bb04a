// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/mdhender/regsnap/model"
)

// LocateService resolves the set of archives a feed is expected to
// publish. Descriptor generation is pure; the only network access is the
// index-document fetch in snapshot mode.
type LocateService struct {
	client *http.Client
}

// NewLocateService creates a new LocateService.
// A nil client falls back to http.DefaultClient.
func NewLocateService(client *http.Client) *LocateService {
	if client == nil {
		client = http.DefaultClient
	}
	return &LocateService{client: client}
}

// Snapshot describes the current snapshot found on the index page.
type Snapshot struct {
	Feed  string
	Date  string // YYYY-MM-DD as published
	Parts int
}

// ResolveSnapshot scrapes the feed's index page for the current snapshot
// and generates one descriptor per part, 1..N. The date and part count
// come from the first matching entry, following the upstream publishing
// convention that all listed parts belong to one snapshot.
func (s *LocateService) ResolveSnapshot(ctx context.Context, feed model.Feed) (Snapshot, []model.ArchiveDescriptor, error) {
	url := feed.BaseURL + "/" + feed.IndexPage

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Snapshot{}, nil, &ErrDiscovery{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Snapshot{}, nil, &ErrDiscovery{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, nil, &ErrDiscovery{URL: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, nil, &ErrDiscovery{URL: url, Err: err}
	}

	snap, descs, err := parseSnapshotIndex(feed, body)
	if err != nil {
		return Snapshot{}, nil, &ErrDiscovery{URL: url, Err: err}
	}
	return snap, descs, nil
}

// parseSnapshotIndex extracts {feed}-YYYY-MM-DD-partN_T.zip references
// from an index document and expands them to the full part list.
func parseSnapshotIndex(feed model.Feed, body []byte) (Snapshot, []model.ArchiveDescriptor, error) {
	pattern := regexp.MustCompile(regexp.QuoteMeta(feed.ID) + `-(\d{4}-\d{2}-\d{2})-part(\d+)_(\d+)\.zip`)

	match := pattern.FindSubmatch(body)
	if match == nil {
		return Snapshot{}, nil, fmt.Errorf("no %s archives listed", feed.ID)
	}

	date := string(match[1])
	total, err := strconv.Atoi(string(match[3]))
	if err != nil || total < 1 {
		return Snapshot{}, nil, fmt.Errorf("bad part count %q", match[3])
	}

	snap := Snapshot{Feed: feed.ID, Date: date, Parts: total}
	descs := make([]model.ArchiveDescriptor, 0, total)
	for part := 1; part <= total; part++ {
		descs = append(descs, model.ArchiveDescriptor{
			Feed:      feed.ID,
			Filename:  fmt.Sprintf("%s-%s-part%d_%d.zip", feed.ID, date, part, total),
			PartNo:    part,
			PartTotal: total,
		})
	}
	return snap, descs, nil
}

// MonthRange generates one descriptor per calendar month in the closed
// interval [from, to]. Filenames embed the zero-padded month so that
// lexicographic order is chronological order, an invariant the loader
// relies on. An inverted range yields zero descriptors, not an error.
func MonthRange(feed model.Feed, from, to time.Time) []model.ArchiveDescriptor {
	var descs []model.ArchiveDescriptor
	month := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		descs = append(descs, model.ArchiveDescriptor{
			Feed:     feed.ID,
			Filename: fmt.Sprintf("%s-%04d-%02d.zip", feed.ID, month.Year(), int(month.Month())),
		})
		month = month.AddDate(0, 1, 0)
	}
	return descs
}
