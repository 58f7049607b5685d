// Package czdate formats timestamps for Czech readers using dateformat-style
// patterns ("d. m. yyyy H:MM", "dddd d. mmmm yyyy H:MM").
//
// Supported tokens:
//
//	d dd       day of month, without / with leading zero
//	ddd dddd   short / long day name (po, pondělí)
//	m mm       month number, without / with leading zero
//	mmm mmmm   month name in the genitive (ledna, února)
//	yy yyyy    two / four digit year
//	h hh       12-hour clock
//	H HH       24-hour clock
//	M MM       minutes
//	s ss       seconds
//	t tt T TT  am/pm markers (a, am, A, AM)
//
// Anything else, including text inside single or double quotes, is copied
// verbatim.
package czdate

import (
	"strconv"
	"strings"
	"time"
)

// Patterns used by the blog pages.
const (
	Short = "d. m. yyyy H:MM"
	Long  = "dddd d. mmmm yyyy H:MM"
)

var shortDayNames = [7]string{"ne", "po", "út", "st", "čt", "pá", "so"}

var longDayNames = [7]string{"neděle", "pondělí", "úterý", "středa", "čtvrtek", "pátek", "sobota"}

// Czech dates put the month in the genitive, so the short and long month
// names are the same.
var monthNames = [12]string{
	"ledna", "února", "března", "dubna", "května", "června",
	"července", "srpna", "září", "října", "listopadu", "prosince",
}

// maxRun is the longest run of each token letter that forms a single token.
var maxRun = map[byte]int{
	'd': 4, 'm': 4, 'y': 4,
	'h': 2, 'H': 2, 'M': 2, 's': 2, 't': 2, 'T': 2,
}

// Format renders t according to pattern in t's own location.
func Format(t time.Time, pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 16)
	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c == '\'' || c == '"' {
			end := strings.IndexByte(pattern[i+1:], c)
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		limit, ok := maxRun[c]
		if !ok {
			b.WriteByte(c)
			i++
			continue
		}
		n := 1
		for i+n < len(pattern) && pattern[i+n] == c && n < limit {
			n++
		}
		if c == 'y' && n != 2 && n != 4 {
			// Only yy and yyyy are tokens.
			if n == 3 {
				n = 2
			} else {
				b.WriteByte(c)
				i++
				continue
			}
		}
		b.WriteString(token(t, c, n))
		i += n
	}
	return b.String()
}

func token(t time.Time, c byte, n int) string {
	switch c {
	case 'd':
		switch n {
		case 1:
			return strconv.Itoa(t.Day())
		case 2:
			return pad(t.Day())
		case 3:
			return shortDayNames[t.Weekday()]
		default:
			return longDayNames[t.Weekday()]
		}
	case 'm':
		switch n {
		case 1:
			return strconv.Itoa(int(t.Month()))
		case 2:
			return pad(int(t.Month()))
		default:
			return monthNames[t.Month()-1]
		}
	case 'y':
		if n == 2 {
			return pad(t.Year() % 100)
		}
		return strconv.Itoa(t.Year())
	case 'h':
		hour := t.Hour() % 12
		if hour == 0 {
			hour = 12
		}
		if n == 2 {
			return pad(hour)
		}
		return strconv.Itoa(hour)
	case 'H':
		if n == 2 {
			return pad(t.Hour())
		}
		return strconv.Itoa(t.Hour())
	case 'M':
		if n == 2 {
			return pad(t.Minute())
		}
		return strconv.Itoa(t.Minute())
	case 's':
		if n == 2 {
			return pad(t.Second())
		}
		return strconv.Itoa(t.Second())
	case 't', 'T':
		marker := "a"
		if t.Hour() >= 12 {
			marker = "p"
		}
		if n == 2 {
			marker += "m"
		}
		if c == 'T' {
			marker = strings.ToUpper(marker)
		}
		return marker
	}
	return ""
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
