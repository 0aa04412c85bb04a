// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package model

import "time"

// ArchiveDescriptor names one downloadable archive for a feed.
// Snapshot feeds publish as numbered parts; monthly feeds leave
// PartNo and PartTotal zero.
type ArchiveDescriptor struct {
	Feed      string `json:"feed"`
	Filename  string `json:"filename"`
	PartNo    int    `json:"partNo,omitempty"`
	PartTotal int    `json:"partTotal,omitempty"`
}

// CleanStats reports aggregate outcomes of a clean pass.
// Per-row drops are expected behavior and are never reported individually.
type CleanStats struct {
	InputRows   int `json:"inputRows"`
	DroppedDate int `json:"droppedDate"`
	DroppedName int `json:"droppedName"`
	OutputRows  int `json:"outputRows"`
}

// ShardRange describes one written shard: the inclusive row range of the
// cleaned table it covers and the directory it was persisted to.
type ShardRange struct {
	Index    int    `json:"index"`
	StartRow int    `json:"startRow"`
	EndRow   int    `json:"endRow"`
	Rows     int    `json:"rows"`
	Dir      string `json:"dir"`
}

// Run is one recorded pipeline invocation in the manifest store.
type Run struct {
	ID          string     `json:"id"          db:"id"` // UUID
	Feed        string     `json:"feed"        db:"feed"`
	StartedAt   time.Time  `json:"startedAt"   db:"started_at"`
	FinishedAt  *time.Time `json:"finishedAt"  db:"finished_at"`
	RawRows     int        `json:"rawRows"     db:"raw_rows"`
	CleanRows   int        `json:"cleanRows"   db:"clean_rows"`
	DroppedDate int        `json:"droppedDate" db:"dropped_date"`
	DroppedName int        `json:"droppedName" db:"dropped_name"`
	ShardCount  int        `json:"shardCount"  db:"shard_count"`
}

// Archive fetch outcomes recorded per run.
const (
	ArchiveStatusFetched = "fetched"
	ArchiveStatusCached  = "cached"
	ArchiveStatusFailed  = "failed"
)

// RunArchive is one archive outcome within a run.
type RunArchive struct {
	RunID     string `json:"runId"     db:"run_id"`
	Filename  string `json:"filename"  db:"filename"`
	Status    string `json:"status"    db:"status"`
	PartNo    int    `json:"partNo"    db:"part_no"`
	PartTotal int    `json:"partTotal" db:"part_total"`
}
