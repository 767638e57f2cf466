// Package marketcal normalizes daily price timestamps to the close slot of
// each market's trading day.
package marketcal

import (
	"log/slog"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/scmhub/calendar"

	"price_engine/internal/feature/prices/domain/entity"
)

// Calendar knows the trading days and daily close time of one market.
type Calendar struct {
	name        string
	cal         *calendar.Calendar
	loc         *time.Location
	closeHour   int
	closeMinute int
	everyDay    bool
}

var (
	mu    sync.Mutex
	cache = map[entity.Market]*Calendar{}
)

// ForMarket returns the calendar for market. Unknown markets get the US calendar.
func ForMarket(m entity.Market) *Calendar {
	mu.Lock()
	defer mu.Unlock()
	if c, ok := cache[m]; ok {
		return c
	}
	var c *Calendar
	switch m {
	case entity.MarketEquityRegional:
		c = newCalendar("xtae", "Asia/Jerusalem", 17, 25)
	case entity.MarketCrypto:
		c = &Calendar{name: "crypto", loc: time.UTC, closeHour: 23, closeMinute: 59, everyDay: true}
	case entity.MarketCurrency:
		c = &Calendar{name: "fx", loc: time.UTC, closeHour: 23}
	default:
		c = newCalendar("xnys", "America/New_York", 16, 0)
	}
	cache[m] = c
	return c
}

func newCalendar(mic, zone string, hour, minute int) *Calendar {
	c := &Calendar{name: mic, closeHour: hour, closeMinute: minute}
	c.cal = calendar.GetCalendar(mic)
	if c.cal != nil && c.cal.Loc != nil {
		c.loc = c.cal.Loc
		return c
	}
	slog.Warn("exchange calendar unavailable, using Mon-Fri fallback", "mic", mic)
	loc, err := time.LoadLocation(zone)
	if err != nil {
		loc = time.UTC
	}
	c.loc = loc
	return c
}

// Name returns the MIC or pseudo-name of the calendar.
func (c *Calendar) Name() string { return c.name }

// Location returns the exchange time zone.
func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay reports whether the exchange trades on t's local date.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.everyDay {
		return true
	}
	if c.cal != nil {
		return c.cal.IsBusinessDay(t)
	}
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// closeOn returns the close instant of the local date y-m-d.
func (c *Calendar) closeOn(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, c.closeHour, c.closeMinute, 0, 0, c.loc)
}

// CloseSlot returns the most recent completed close at or before now, in UTC.
// Before today's close the previous trading day's slot is used so a partial
// session is never recorded as a daily close.
func (c *Calendar) CloseSlot(now time.Time) time.Time {
	local := now.In(c.loc)
	slot := c.closeOn(local.Date())
	if local.Before(slot) {
		slot = slot.AddDate(0, 0, -1)
	}
	for i := 0; i < 14 && !c.IsTradingDay(slot); i++ {
		slot = slot.AddDate(0, 0, -1)
	}
	return slot.UTC()
}

// NextClose returns the first close slot strictly after now, in UTC.
func (c *Calendar) NextClose(now time.Time) time.Time {
	local := now.In(c.loc)
	slot := c.closeOn(local.Date())
	if !local.Before(slot) {
		slot = slot.AddDate(0, 0, 1)
	}
	for i := 0; i < 14 && !c.IsTradingDay(slot); i++ {
		slot = slot.AddDate(0, 0, 1)
	}
	return slot.UTC()
}

// NextSessionStart returns the local midnight, in UTC, of the first trading day
// whose close comes after the close slot containing t.
func (c *Calendar) NextSessionStart(t time.Time) time.Time {
	next := c.NextClose(c.CloseSlot(t)).In(c.loc)
	y, m, d := next.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc).UTC()
}

// NormalizeDay maps a daily bar to the close slot of its date. The date is
// read in t's own location, so providers must hand over either a date-only
// value or a timestamp already placed in the exchange zone.
func (c *Calendar) NormalizeDay(t time.Time) time.Time {
	return c.closeOn(t.Date()).UTC()
}

// CloseSlot is shorthand for ForMarket(m).CloseSlot(now).
func CloseSlot(m entity.Market, now time.Time) time.Time {
	return ForMarket(m).CloseSlot(now)
}
