package timeutil

import "time"

func NowUnix() int64 {
	return time.Now().Unix()
}

// NowMilli is used for ctime/mtime columns so that records created within the
// same second still sort deterministically.
func NowMilli() int64 {
	return time.Now().UnixMilli()
}
