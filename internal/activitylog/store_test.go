package activitylog

import (
	"testing"
	"time"
)

func TestDayBounds_CoversReportingDay(t *testing.T) {
	// 2024-04-22 20:00 UTC is already 2024-04-23 04:00 in the reporting zone.
	at := time.Date(2024, 4, 22, 20, 0, 0, 0, time.UTC)

	start, end := dayBounds(at)

	if !start.Equal(time.Date(2024, 4, 23, 0, 0, 0, 0, reportingZone)) {
		t.Errorf("wrong day start: %v", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("expected a 24h window, got %v", end.Sub(start))
	}
	if at.Before(start) || !at.Before(end) {
		t.Errorf("timestamp %v should fall inside [%v, %v)", at, start, end)
	}
}

func TestDayBounds_ExcludesYesterday(t *testing.T) {
	now := time.Date(2024, 4, 23, 10, 0, 0, 0, reportingZone)
	yesterday := now.Add(-24 * time.Hour)

	start, end := dayBounds(now)

	if !yesterday.Before(start) {
		t.Errorf("entry from a full day ago (%v) must precede window start %v", yesterday, start)
	}
	if !now.Before(end) || now.Before(start) {
		t.Errorf("current instant must be inside the window")
	}
}
