package app

import (
	"encoding/json"
	"fmt"

	"github.com/coocood/freecache"

	"github.com/okian/stride/internal/domain/calendar"
)

const (
	megabyte            = 1024 * 1024
	defaultSnapshotSize = 32 * megabyte
	// Snapshots never expire on their own; the cache evicts by size.
	snapshotExpire = 0
)

// snapshots keeps the last good dashboard and calendar grids per user,
// JSON encoded in a fixed-size cache.
type snapshots struct {
	cache *freecache.Cache
}

func newSnapshots(size int) *snapshots {
	return &snapshots{cache: freecache.NewCache(size)}
}

func dashboardKey(userID string) []byte {
	return []byte("dashboard::" + userID)
}

func (k gridKey) bytes() []byte {
	return []byte(fmt.Sprintf("grid::%s::%s::%d", k.userID, k.start, k.days))
}

func (s *snapshots) putDashboard(d Dashboard) error {
	return s.put(dashboardKey(d.UserID), d)
}

func (s *snapshots) dashboard(userID string) (Dashboard, bool) {
	var d Dashboard
	ok := s.get(dashboardKey(userID), &d)
	return d, ok
}

func (s *snapshots) putGrid(k gridKey, g calendar.Grid) error {
	return s.put(k.bytes(), g)
}

func (s *snapshots) grid(k gridKey) (calendar.Grid, bool) {
	var g calendar.Grid
	ok := s.get(k.bytes(), &g)
	return g, ok
}

// count is the number of cached snapshots of either kind.
func (s *snapshots) count() int64 {
	return s.cache.EntryCount()
}

func (s *snapshots) put(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.cache.Set(key, b, snapshotExpire); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *snapshots) get(key []byte, v any) bool {
	b, err := s.cache.Get(key)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}
