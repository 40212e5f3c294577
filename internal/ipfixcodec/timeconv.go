package ipfixcodec

import "time"

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func timeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}
