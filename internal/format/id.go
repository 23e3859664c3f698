package format

import (
	"strconv"
	"strings"
	"time"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateDocumentID returns PREFIX-YYYY-SUFFIX where SUFFIX is length
// uppercase base-36 characters from the injected random source.
//
// IDs are not unique by construction. With a 6 character suffix there are
// 36^6 (about 2.2e9) values per prefix and year, so a 50% chance of a
// collision is reached after roughly 55 000 ids. Callers that persist ids
// rely on the store's primary key to surface collisions.
func (f *Formatter) GenerateDocumentID(prefix string, length int) string {
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(len(prefix) + 6 + length)
	b.WriteString(prefix)
	b.WriteByte('-')
	b.WriteString(strconv.Itoa(f.clock.Now().Year()))
	b.WriteByte('-')
	for range length {
		b.WriteByte(idAlphabet[f.rand.IntN(len(idAlphabet))])
	}
	return b.String()
}

// BusinessDaysBetween counts weekdays from start to end, both inclusive.
// It returns 0 when end is before start.
func BusinessDaysBetween(start, end time.Time) int {
	cur := truncateDay(start)
	last := truncateDay(end)
	count := 0
	for !cur.After(last) {
		if wd := cur.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
		cur = cur.AddDate(0, 0, 1)
	}
	return count
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
