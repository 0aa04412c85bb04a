// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package model

import "strings"

// FeedKind discriminates how a feed publishes its archives.
type FeedKind string

const (
	// FeedKindSnapshot feeds publish one dated snapshot split into
	// numbered parts, discovered from the upstream index page.
	FeedKindSnapshot FeedKind = "snapshot"
	// FeedKindMonthly feeds publish one archive per calendar month.
	FeedKindMonthly FeedKind = "monthly"
)

// Feed is a named upstream dataset on the registry's download site.
type Feed struct {
	ID        string // canonical prefix used in archive filenames
	Kind      FeedKind
	Source    string // provenance tag stamped on cleaned records
	BaseURL   string
	IndexPage string // index document listing snapshot parts
}

// DefaultBaseURL is the registry's bulk download site.
const DefaultBaseURL = "https://download.companieshouse.gov.uk"

var feeds = []Feed{
	{
		ID:        "BasicCompanyData",
		Kind:      FeedKindSnapshot,
		Source:    "ch",
		BaseURL:   DefaultBaseURL,
		IndexPage: "en_output.html",
	},
	{
		ID:        "Accounts_Monthly_Data",
		Kind:      FeedKindMonthly,
		Source:    "ch",
		BaseURL:   DefaultBaseURL,
		IndexPage: "en_accountsdata.html",
	},
}

// Feeds returns the known feed registry.
func Feeds() []Feed {
	return feeds
}

// FindFeed looks up a feed by name. Matching is case-insensitive and
// ignores separator characters, so "basic-company-data" and
// "BasicCompanyData" name the same feed.
func FindFeed(name string) (Feed, bool) {
	want := normalizeFeedName(name)
	for _, feed := range feeds {
		if normalizeFeedName(feed.ID) == want {
			return feed, true
		}
	}
	return Feed{}, false
}

func normalizeFeedName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch r {
		case '-', '_', '.', ' ':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
