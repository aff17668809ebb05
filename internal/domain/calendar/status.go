package calendar

import (
	"time"

	"github.com/okian/stride/internal/domain/model"
	"github.com/okian/stride/internal/domain/window"
)

// EffectiveStatus derives the display status of an entry. A planned entry
// dated before today shows as missed; nothing ever stores that state.
func EffectiveStatus(e model.CalendarEntry, today time.Time) model.EntryStatus {
	loc := today.Location()
	return effectiveStatus(e, window.DateKey(e.Date.In(loc)), window.DateKey(today))
}

// Date keys sort lexically in date order, so plain string comparison works.
func effectiveStatus(e model.CalendarEntry, entryKey, todayKey string) model.EntryStatus {
	if e.Status == model.StatusPlanned && todayKey != "" && entryKey < todayKey {
		return model.StatusMissed
	}
	return e.Status
}

// ToggleStatus flips a completed entry back to planned and anything else to
// completed. It never produces missed.
func ToggleStatus(s model.EntryStatus) model.EntryStatus {
	if s == model.StatusCompleted {
		return model.StatusPlanned
	}
	return model.StatusCompleted
}

// WritableStatus reports whether s may be stored by a status update.
func WritableStatus(s model.EntryStatus) bool {
	return s == model.StatusPlanned || s == model.StatusCompleted
}
