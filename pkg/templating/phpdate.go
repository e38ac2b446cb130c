package templating

import (
	"strconv"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// formatPHPDate renders t with a PHP date() format string. Day and month
// names come from locale. A backslash emits the following character as is;
// characters with no meaning are copied through.
func formatPHPDate(t time.Time, layout string, locale monday.Locale) string {
	var sb strings.Builder
	runes := []rune(layout)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' {
			if i+1 < len(runes) {
				i++
				sb.WriteRune(runes[i])
			}
			continue
		}
		sb.WriteString(phpDateField(t, c, locale))
	}
	return sb.String()
}

func phpDateField(t time.Time, c rune, locale monday.Locale) string {
	switch c {
	// Day
	case 'd':
		return pad2(t.Day())
	case 'D':
		return monday.Format(t, "Mon", locale)
	case 'j':
		return strconv.Itoa(t.Day())
	case 'l':
		return monday.Format(t, "Monday", locale)
	case 'N':
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return strconv.Itoa(wd)
	case 'S':
		return ordinalSuffix(t.Day())
	case 'w':
		return strconv.Itoa(int(t.Weekday()))
	case 'z':
		return strconv.Itoa(t.YearDay() - 1)

	// Week
	case 'W':
		_, week := t.ISOWeek()
		return pad2(week)

	// Month
	case 'F':
		return monday.Format(t, "January", locale)
	case 'm':
		return pad2(int(t.Month()))
	case 'M':
		return monday.Format(t, "Jan", locale)
	case 'n':
		return strconv.Itoa(int(t.Month()))
	case 't':
		return strconv.Itoa(daysIn(t))

	// Year
	case 'L':
		if daysInYear(t.Year()) == 366 {
			return "1"
		}
		return "0"
	case 'o':
		year, _ := t.ISOWeek()
		return strconv.Itoa(year)
	case 'Y':
		return strconv.Itoa(t.Year())
	case 'y':
		return t.Format("06")

	// Time
	case 'a':
		return t.Format("pm")
	case 'A':
		return t.Format("PM")
	case 'g':
		return t.Format("3")
	case 'G':
		return strconv.Itoa(t.Hour())
	case 'h':
		return t.Format("03")
	case 'H':
		return pad2(t.Hour())
	case 'i':
		return pad2(t.Minute())
	case 's':
		return pad2(t.Second())
	case 'u':
		return t.Format(".000000")[1:]
	case 'v':
		return t.Format(".000")[1:]

	// Timezone
	case 'e':
		return t.Location().String()
	case 'I':
		if t.IsDST() {
			return "1"
		}
		return "0"
	case 'O':
		return t.Format("-0700")
	case 'P':
		return t.Format("-07:00")
	case 'p':
		if _, off := t.Zone(); off == 0 {
			return "Z"
		}
		return t.Format("-07:00")
	case 'T':
		return t.Format("MST")
	case 'Z':
		_, off := t.Zone()
		return strconv.Itoa(off)

	// Full date/time
	case 'c':
		return t.Format("2006-01-02T15:04:05-07:00")
	case 'r':
		return t.Format("Mon, 02 Jan 2006 15:04:05 -0700")
	case 'U':
		return strconv.FormatInt(t.Unix(), 10)
	}
	return string(c)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
