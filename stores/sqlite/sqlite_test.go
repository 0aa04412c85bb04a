// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mdhender/regsnap/model"
	store "github.com/mdhender/regsnap/stores/sqlite"
)

func TestStore_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewStore()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	run := &model.Run{
		ID:        uuid.NewString(),
		Feed:      "BasicCompanyData",
		StartedAt: time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC),
	}
	if err := s.InsertRun(ctx, run); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	loaded, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if loaded == nil {
		t.Fatal("run not found")
	}
	if loaded.Feed != "BasicCompanyData" {
		t.Errorf("expected feed BasicCompanyData, got %q", loaded.Feed)
	}
	if loaded.FinishedAt != nil {
		t.Error("expected unfinished run")
	}

	run.RawRows = 1000
	run.CleanRows = 950
	run.DroppedDate = 30
	run.DroppedName = 20
	run.ShardCount = 5
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	loaded, err = s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if loaded.FinishedAt == nil {
		t.Error("expected finished run")
	}
	if loaded.CleanRows != 950 || loaded.ShardCount != 5 {
		t.Errorf("unexpected counts %+v", loaded)
	}
}

func TestStore_GetRunMissing(t *testing.T) {
	s, err := store.NewStore()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	run, err := s.GetRun(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run != nil {
		t.Error("expected nil for missing run")
	}
}

func TestStore_ArchivesAndShards(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewStore()
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	run := &model.Run{ID: uuid.NewString(), Feed: "BasicCompanyData", StartedAt: time.Now().UTC()}
	if err := s.InsertRun(ctx, run); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	archives := []struct {
		ra        model.RunArchive
		code, msg string
	}{
		{ra: model.RunArchive{RunID: run.ID, Filename: "a-part1_2.zip", Status: model.ArchiveStatusFetched, PartNo: 1, PartTotal: 2}},
		{ra: model.RunArchive{RunID: run.ID, Filename: "a-part2_2.zip", Status: model.ArchiveStatusFailed, PartNo: 2, PartTotal: 2}, code: "FETCH_FILE", msg: "HTTP 500"},
	}
	for _, a := range archives {
		if err := s.InsertRunArchive(ctx, &a.ra, a.code, a.msg); err != nil {
			t.Fatalf("insert archive: %v", err)
		}
	}

	for _, shard := range []model.ShardRange{
		{Index: 0, StartRow: 0, EndRow: 3, Dir: "/out/part_00000"},
		{Index: 1, StartRow: 4, EndRow: 5, Dir: "/out/part_00001"},
	} {
		if err := s.InsertRunShard(ctx, run.ID, shard); err != nil {
			t.Fatalf("insert shard: %v", err)
		}
	}

	gotArchives, err := s.RunArchives(ctx, run.ID)
	if err != nil {
		t.Fatalf("run archives: %v", err)
	}
	if len(gotArchives) != 2 {
		t.Fatalf("expected 2 archives, got %d", len(gotArchives))
	}
	if gotArchives[1].Status != model.ArchiveStatusFailed {
		t.Errorf("expected failed status, got %q", gotArchives[1].Status)
	}

	gotShards, err := s.RunShards(ctx, run.ID)
	if err != nil {
		t.Fatalf("run shards: %v", err)
	}
	if len(gotShards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(gotShards))
	}
	if gotShards[0].Rows != 4 {
		t.Errorf("expected 4 rows in first shard, got %d", gotShards[0].Rows)
	}

	stats, err := s.TableStats(ctx)
	if err != nil {
		t.Fatalf("table stats: %v", err)
	}
	if stats["run_archives"] != 2 || stats["run_shards"] != 2 {
		t.Errorf("unexpected stats %v", stats)
	}
}
