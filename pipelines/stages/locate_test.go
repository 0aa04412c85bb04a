// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package stages_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mdhender/regsnap/model"
	"github.com/mdhender/regsnap/pipelines/stages"
)

func snapshotFeed(baseURL string) model.Feed {
	return model.Feed{
		ID:        "BasicCompanyData",
		Kind:      model.FeedKindSnapshot,
		Source:    "ch",
		BaseURL:   baseURL,
		IndexPage: "en_output.html",
	}
}

const indexPage = `<html><body>
<a href="BasicCompanyData-2024-06-01-part1_3.zip">part 1</a>
<a href="BasicCompanyData-2024-06-01-part2_3.zip">part 2</a>
<a href="BasicCompanyData-2024-06-01-part3_3.zip">part 3</a>
</body></html>`

func TestLocateService_ResolveSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/en_output.html" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(indexPage))
	}))
	defer srv.Close()

	svc := stages.NewLocateService(srv.Client())
	snap, descs, err := svc.ResolveSnapshot(context.Background(), snapshotFeed(srv.URL))
	if err != nil {
		t.Fatalf("resolve snapshot: %v", err)
	}

	if snap.Date != "2024-06-01" {
		t.Errorf("expected date 2024-06-01, got %q", snap.Date)
	}
	if snap.Parts != 3 {
		t.Errorf("expected 3 parts, got %d", snap.Parts)
	}
	if len(descs) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descs))
	}
	for i, desc := range descs {
		if desc.PartNo != i+1 {
			t.Errorf("descriptor %d: expected part %d, got %d", i, i+1, desc.PartNo)
		}
		if desc.PartTotal != 3 {
			t.Errorf("descriptor %d: expected total 3, got %d", i, desc.PartTotal)
		}
	}
	if descs[0].Filename != "BasicCompanyData-2024-06-01-part1_3.zip" {
		t.Errorf("unexpected filename %q", descs[0].Filename)
	}
}

func TestLocateService_EmptyIndexIsDiscoveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>nothing here</body></html>`))
	}))
	defer srv.Close()

	svc := stages.NewLocateService(srv.Client())
	_, _, err := svc.ResolveSnapshot(context.Background(), snapshotFeed(srv.URL))

	var derr *stages.ErrDiscovery
	if !errors.As(err, &derr) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
	if stages.ErrorCode(err) != stages.ErrCodeDiscovery {
		t.Errorf("expected DISCOVERY code, got %q", stages.ErrorCode(err))
	}
}

func TestLocateService_UnreachableIndexIsDiscoveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := stages.NewLocateService(srv.Client())
	_, _, err := svc.ResolveSnapshot(context.Background(), snapshotFeed(srv.URL))

	var derr *stages.ErrDiscovery
	if !errors.As(err, &derr) {
		t.Fatalf("expected ErrDiscovery, got %v", err)
	}
}

func TestMonthRange(t *testing.T) {
	feed := model.Feed{ID: "Accounts_Monthly_Data", Kind: model.FeedKindMonthly}

	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	descs := stages.MonthRange(feed, from, to)
	if len(descs) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descs))
	}
	want := []string{
		"Accounts_Monthly_Data-2024-01.zip",
		"Accounts_Monthly_Data-2024-02.zip",
		"Accounts_Monthly_Data-2024-03.zip",
	}
	for i, desc := range descs {
		if desc.Filename != want[i] {
			t.Errorf("descriptor %d: expected %q, got %q", i, want[i], desc.Filename)
		}
	}
}

func TestMonthRange_YearRollover(t *testing.T) {
	feed := model.Feed{ID: "Accounts_Monthly_Data", Kind: model.FeedKindMonthly}

	from := time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	descs := stages.MonthRange(feed, from, to)
	if len(descs) != 4 {
		t.Fatalf("expected 4 descriptors, got %d", len(descs))
	}
	if descs[1].Filename != "Accounts_Monthly_Data-2023-12.zip" {
		t.Errorf("unexpected filename %q", descs[1].Filename)
	}
	if descs[2].Filename != "Accounts_Monthly_Data-2024-01.zip" {
		t.Errorf("unexpected filename %q", descs[2].Filename)
	}
}

func TestMonthRange_InvertedRangeIsEmpty(t *testing.T) {
	feed := model.Feed{ID: "Accounts_Monthly_Data", Kind: model.FeedKindMonthly}

	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	if descs := stages.MonthRange(feed, from, to); len(descs) != 0 {
		t.Errorf("expected empty range, got %d descriptors", len(descs))
	}
}
