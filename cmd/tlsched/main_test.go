package main

import (
	"testing"

	"tlsched/internal/config"
)

func TestResourcesForAddsFeedRows(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Resources = []config.ResourceConfig{{ID: "room-1", Label: "Room 1"}}
	conf.ICS = []config.ICSConfig{
		{ID: "a", URL: "https://example.com/a.ics", ResourceID: "room-1"},
		{ID: "b", Name: "Team B", URL: "https://example.com/b.ics"},
		{ID: "c"},
	}
	conf.Normalize()

	got := resourcesFor(conf)
	if len(got) != 3 {
		t.Fatalf("resources = %+v", got)
	}
	if got[0].ID != "room-1" || got[1].ID != "b" || got[1].Label != "Team B" || got[2].ID != "c" {
		t.Fatalf("resources = %+v", got)
	}

	sources := sourcesFor(conf)
	if len(sources) != 2 || sources[1].ResourceID != "b" {
		t.Fatalf("sources = %+v", sources)
	}
}
