package tools

import (
	"fmt"
	"regexp"
	"time"
)

// BookingParams are reservation parameters extracted from free text.
type BookingParams struct {
	URL       string
	PartySize int
	Date      string // YYYY-MM-DD
	Time      string // HH:MM, 24h
}

var (
	bookingURLRe   = regexp.MustCompile(`https?://[^\s,，]+`)
	partySizeRe    = regexp.MustCompile(`(\d{1,2})\s*(?:人|位)`)
	clockTimeRe    = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	hourWordRe     = regexp.MustCompile(`(\d{1,2})\s*點`)
	monthDayRe     = regexp.MustCompile(`(\d{1,2})\s*/\s*(\d{1,2})`)
	eveningPrefix  = regexp.MustCompile(`(晚上|下午)\s*(\d{1,2})`)
	bookingDateFmt = "2006-01-02"
)

// ParseBookingParams extracts url, party size, date and time from natural
// language like "幫我訂位 https://... 人數4人，時間7/31 晚上17:30". The date
// year is resolved forward from now: a month/day already past rolls into
// the next year.
func ParseBookingParams(text string, now time.Time) BookingParams {
	p := BookingParams{URL: bookingURLRe.FindString(text)}

	if m := partySizeRe.FindStringSubmatch(text); m != nil {
		p.PartySize = atoiOr(m[1], 0)
	}

	if m := clockTimeRe.FindStringSubmatch(text); m != nil {
		hour, minute := atoiOr(m[1], 0), atoiOr(m[2], 0)
		if hour < 12 && hasEveningHint(text, m[1]) {
			hour += 12
		}
		if hour < 24 && minute < 60 {
			p.Time = fmt.Sprintf("%02d:%02d", hour, minute)
		}
	} else if m := hourWordRe.FindStringSubmatch(text); m != nil {
		hour := atoiOr(m[1], 0)
		if hour < 12 && hasEveningHint(text, m[1]) {
			hour += 12
		}
		if hour < 24 {
			p.Time = fmt.Sprintf("%02d:00", hour)
		}
	}

	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		month, day := atoiOr(m[1], 0), atoiOr(m[2], 0)
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			year := now.Year()
			candidate := time.Date(year, time.Month(month), day, 23, 59, 0, 0, now.Location())
			if candidate.Before(now) {
				year++
			}
			p.Date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(bookingDateFmt)
		}
	}

	return p
}

func hasEveningHint(text, hourDigits string) bool {
	for _, m := range eveningPrefix.FindAllStringSubmatch(text, -1) {
		if m[2] == hourDigits {
			return true
		}
	}
	return false
}

func atoiOr(s string, fallback int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}
