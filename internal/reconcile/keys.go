package reconcile

import (
	"strconv"
	"strings"
)

// Store keys shared by every context of one notebook profile.
const (
	KeyTabs        = "notebook-tabs"
	KeyNotes       = "notebook-notes"
	KeyActiveTabID = "notebook-active-tab-id"
	KeyActiveNote  = "notebook-active-note-id"
	KeyLastSync    = "notebook-last-sync"
)

var watchedKeys = []string{KeyTabs, KeyNotes, KeyActiveTabID, KeyActiveNote, KeyLastSync}

// storedValue is the last value this context wrote or adopted for a key.
type storedValue struct {
	value   string
	present bool
}

func formatLastSync(millis int64) string {
	return strconv.FormatInt(millis, 10)
}

// parseLastSync reads a sync stamp. Malformed and negative stamps are rejected.
func parseLastSync(raw string) (int64, bool) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
