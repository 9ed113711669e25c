package sync

import (
	"fmt"
	"strconv"
	"time"
)

// TimeAgo renders t relative to now: "Just now" under a minute, then
// minutes, hours and days, and a local calendar date from a week on.
func TimeAgo(t, now time.Time) string {
	secs := int64(now.Sub(t) / time.Second)

	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return fmt.Sprintf("%dm ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%dh ago", secs/3600)
	case secs < 604800:
		return fmt.Sprintf("%dd ago", secs/86400)
	default:
		return t.Local().Format("1/2/2006")
	}
}

// BadgeText is the bell badge label: empty when there is nothing unread,
// capped at "9+".
func BadgeText(count int) string {
	switch {
	case count <= 0:
		return ""
	case count > 9:
		return "9+"
	default:
		return strconv.Itoa(count)
	}
}
