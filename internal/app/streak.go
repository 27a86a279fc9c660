package app

import (
	"time"

	"quizzy-service/internal/domain"
)

// CalendarDay truncates t to its calendar day in loc, expressed as midnight UTC so
// that two days always differ by a whole multiple of 24 hours.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from earlier to later. Both must come from CalendarDay.
func DaysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}

// ApplyCompletion records a finished quiz on today's calendar day:
//
//	no previous activity  -> streak 1
//	same day              -> streak unchanged
//	next day              -> streak + 1
//	gap of 2+ days        -> streak 1
//	previous day is later -> streak unchanged, reported via backdated
//
// Stars always accumulate and the activity day is always set to today.
func ApplyCompletion(p *domain.Profile, starsEarned int64, today time.Time) (backdated bool) {
	if p.LastQuizDate.IsZero() {
		p.Streak = 1
	} else {
		switch diff := DaysBetween(p.LastQuizDate, today); {
		case diff == 1:
			p.Streak++
		case diff > 1:
			p.Streak = 1
		case diff < 0:
			backdated = true
		}
	}
	p.Stars += starsEarned
	p.LastQuizDate = today
	return backdated
}
