package httpwire

import (
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// HTTP-date layouts without the zone. The hour field is always the 24-hour
// "15" token; the IMF day takes one or two digits.
const (
	layoutIMF     = "Mon, 2 Jan 2006 15:04:05"    // Sun, 06 Nov 1994 08:49:37 GMT
	layoutRFC850  = "Monday, 02-Jan-06 15:04:05"  // Sunday, 06-Nov-94 08:49:37 GMT
	layoutASCTime = "Mon Jan _2 15:04:05 2006"    // Sun Nov  6 08:49:37 1994
	layoutOutput  = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// zoneOffsets maps the zone names an HTTP-date may carry to their offset
// from UTC in hours.
var zoneOffsets = map[string]int{
	"GMT": 0, "UT": 0, "UTC": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// ParseDate converts an HTTP-date into milliseconds since the Unix epoch.
// The preferred form is "<weekday>, <day> <month> <year> <hh>:<mm>:<ss> <zone>";
// the obsolete RFC 850 and asctime forms are accepted too.
func ParseDate(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, errutils.Wrap(errutils.ErrDateFormat, "empty date")
	}

	// asctime has no zone and is always GMT
	if t, err := time.ParseInLocation(layoutASCTime, text, time.UTC); err == nil {
		return t.UnixMilli(), nil
	}

	cut := strings.LastIndexByte(text, ' ')
	if cut < 0 {
		return 0, errutils.Wrapf(errutils.ErrDateFormat, "%q", text)
	}
	stamp, zone := text[:cut], text[cut+1:]

	offset, ok := zoneOffset(zone)
	if !ok {
		return 0, errutils.Wrapf(errutils.ErrDateFormat, "unknown time zone %q", zone)
	}

	var t time.Time
	var err error
	if strings.Contains(stamp, "-") {
		t, err = time.ParseInLocation(layoutRFC850, stamp, time.UTC)
	} else {
		t, err = time.ParseInLocation(layoutIMF, stamp, time.UTC)
	}
	if err != nil {
		return 0, errutils.Wrapf(errutils.ErrDateFormat, "%q: %v", text, err)
	}

	return t.Add(-offset).UnixMilli(), nil
}

// zoneOffset resolves a zone abbreviation or a numeric "+hhmm"/"-hhmm" offset.
func zoneOffset(zone string) (time.Duration, bool) {
	if hours, ok := zoneOffsets[strings.ToUpper(zone)]; ok {
		return time.Duration(hours) * time.Hour, true
	}
	if len(zone) != 5 || (zone[0] != '+' && zone[0] != '-') {
		return 0, false
	}
	hh, err1 := strconv.Atoi(zone[1:3])
	mm, err2 := strconv.Atoi(zone[3:5])
	if err1 != nil || err2 != nil || hh > 23 || mm > 59 {
		return 0, false
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if zone[0] == '-' {
		d = -d
	}
	return d, true
}

// FormatDate renders epoch milliseconds as an IMF-fixdate in GMT.
func FormatDate(millis int64) string {
	return time.UnixMilli(millis).UTC().Format(layoutOutput)
}
