package main

import (
	"fmt"
	"time"

	"github.com/vertextoedge/himawari-fetch/internal/catalog"
	"github.com/vertextoedge/himawari-fetch/internal/config"
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"200601021504",
	"2006-01-02",
}

// parseTime parses a UTC observation time in one of the accepted layouts
func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use e.g. \"2024-01-01 00:00\" (UTC)", s)
}

// parseRange parses --start and --end; an empty end selects the start slot only
func parseRange(start, end string) (time.Time, time.Time, error) {
	if start == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start is required")
	}
	from, err := parseTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end == "" {
		return from, from, nil
	}
	to, err := parseTime(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s is before --start %s", end, start)
	}
	return from, to, nil
}

func layoutOf(cfg *config.Config) catalog.Layout {
	return catalog.Layout{
		BaseDir:             cfg.Download.BaseDir,
		RemoteRoot:          cfg.Remote.RootDir,
		OrganizeByTime:      cfg.Download.OrganizeByTime,
		KeepRemoteStructure: cfg.Download.KeepOriginalStructure,
		TempSuffix:          cfg.Download.TempSuffix,
	}
}

func queryOf(cfg *config.Config, start, end time.Time) catalog.Query {
	return catalog.Query{
		Start:     start,
		End:       end,
		Bands:     cfg.Remote.GetBands(),
		Area:      cfg.Remote.Area,
		Satellite: cfg.Remote.Satellite,
	}
}
