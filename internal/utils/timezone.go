package utils

import "time"

func CurrentDateInTimezone(tz string) string {
	return DateInTimezone(time.Now(), tz)
}

func DateInTimezone(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}
