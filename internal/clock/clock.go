// Package clock owns the simulated calendar, speed control and the pause flag.
// This is the heartbeat of "Mercader Errante".
//
// ARCHITECTURAL RULE: every other subsystem reads time exclusively through
// TotalMinutes (and the derived accessors). No subsystem keeps its own clock.
package clock

import (
	"fmt"

	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
)

// Fixed calendar constants. This is a game calendar, not a real one:
// every month has 30 days, every year 12 months.
const (
	MinutesPerHour = 60
	HoursPerDay    = 24
	DaysPerWeek    = 7
	DaysPerMonth   = 30
	MonthsPerYear  = 12

	MinutesPerDay   = MinutesPerHour * HoursPerDay
	MinutesPerMonth = MinutesPerDay * DaysPerMonth
	MinutesPerYear  = MinutesPerMonth * MonthsPerYear
)

// Speed preset labels.
const (
	SpeedPaused   = "paused"
	SpeedSlow     = "slow"
	SpeedNormal   = "normal"
	SpeedFast     = "fast"
	SpeedVeryFast = "veryfast"
)

// Presets maps a speed label to simulated minutes per real second.
// Immutable. The paused preset is the zero multiplier.
var Presets = map[string]float64{
	SpeedPaused:   0,
	SpeedSlow:     0.5,
	SpeedNormal:   1,
	SpeedFast:     3,
	SpeedVeryFast: 10,
}

// SimTime is the calendar position of the simulation.
// Invariants: 0<=Minute<60, 0<=Hour<24, 1<=Day<=30, 1<=Month<=12.
type SimTime struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Week returns the 1-based week within the month.
func (t SimTime) Week() int {
	return (t.Day-1)/DaysPerWeek + 1
}

// Info is the read surface handed to UI collaborators.
type Info struct {
	SimTime
	Week        int    `json:"week"`
	Formatted   string `json:"formatted"`
	Speed       string `json:"speed"`
	IsPaused    bool   `json:"is_paused"`
	IsMorning   bool   `json:"is_morning"`   // 06:00-11:59
	IsAfternoon bool   `json:"is_afternoon"` // 12:00-17:59
	IsEvening   bool   `json:"is_evening"`   // 18:00-21:59
	IsNight     bool   `json:"is_night"`     // 22:00-05:59
}

// State is the serializable clock snapshot. The fractional accumulator is
// included so a save/load round trip loses no sub-minute time.
type State struct {
	Time        SimTime `json:"time"`
	Speed       string  `json:"speed"`
	Accumulator float64 `json:"accumulator"`
}

// GameClock converts elapsed real time into whole simulated minutes.
type GameClock struct {
	time        SimTime
	speedLabel  string
	paused      bool
	accumulator float64 // fractional sim-minutes not yet applied
	logger      *logger.Logger
}

// New creates a clock at the campaign start: Year 1, Month 1, Day 1, 08:00,
// running at normal speed.
func New(log *logger.Logger) *GameClock {
	return &GameClock{
		time:       SimTime{Year: 1, Month: 1, Day: 1, Hour: 8, Minute: 0},
		speedLabel: SpeedNormal,
		logger:     log,
	}
}

// Advance converts elapsed real milliseconds into simulated minutes using the
// active speed multiplier. Fractional minutes accumulate across calls, so slow
// speeds still make progress. Returns true if at least one whole minute was
// applied. No-op while paused.
func (c *GameClock) Advance(elapsedMillis int64) bool {
	if c.paused || elapsedMillis <= 0 {
		return false
	}
	mult := Presets[c.speedLabel]
	if mult == 0 {
		return false
	}

	c.accumulator += float64(elapsedMillis) / 1000.0 * mult
	whole := int(c.accumulator)
	if whole < 1 {
		return false
	}
	c.accumulator -= float64(whole)
	c.applyMinutes(whole)
	return true
}

// applyMinutes advances the calendar by whole minutes, cascading each carry
// with integer division so no unit is ever skipped.
func (c *GameClock) applyMinutes(n int) {
	c.time.Minute += n
	c.time.Hour += c.time.Minute / MinutesPerHour
	c.time.Minute %= MinutesPerHour

	c.time.Day += c.time.Hour / HoursPerDay
	c.time.Hour %= HoursPerDay

	// Day and month are 1-based.
	c.time.Month += (c.time.Day - 1) / DaysPerMonth
	c.time.Day = (c.time.Day-1)%DaysPerMonth + 1

	c.time.Year += (c.time.Month - 1) / MonthsPerYear
	c.time.Month = (c.time.Month-1)%MonthsPerYear + 1
}

// SetSpeed validates the label against the preset table. Unknown labels leave
// the clock untouched and return false; they never halt the game.
func (c *GameClock) SetSpeed(label string) bool {
	if _, ok := Presets[label]; !ok {
		if c.logger != nil {
			c.logger.Warn("Unknown speed preset ignored: " + label)
		}
		return false
	}
	c.speedLabel = label
	c.paused = label == SpeedPaused
	return true
}

// TogglePause flips the pause flag and returns the new value. Unpausing
// always resumes at normal speed; the previous selection is NOT restored.
func (c *GameClock) TogglePause() bool {
	if c.paused {
		c.SetSpeed(SpeedNormal)
	} else {
		c.SetSpeed(SpeedPaused)
	}
	return c.paused
}

// IsPaused reports the pause flag.
func (c *GameClock) IsPaused() bool {
	return c.paused
}

// Speed returns the active preset label.
func (c *GameClock) Speed() string {
	return c.speedLabel
}

// Time returns the current calendar position.
func (c *GameClock) Time() SimTime {
	return c.time
}

// HourOfDay returns the current hour, used by the market's time-of-day factor.
func (c *GameClock) HourOfDay() int {
	return c.time.Hour
}

// TotalMinutes returns the monotonically increasing absolute minute counter.
// This is the common time base for the scheduler and the market.
func (c *GameClock) TotalMinutes() int64 {
	return int64(c.time.Year-1)*MinutesPerYear +
		int64(c.time.Month-1)*MinutesPerMonth +
		int64(c.time.Day-1)*MinutesPerDay +
		int64(c.time.Hour)*MinutesPerHour +
		int64(c.time.Minute)
}

// DayIndex returns the absolute day counter since the campaign epoch.
func (c *GameClock) DayIndex() int64 {
	return c.TotalMinutes() / MinutesPerDay
}

// TimeInfo returns the formatted read surface for UI collaborators.
func (c *GameClock) TimeInfo() Info {
	h := c.time.Hour
	return Info{
		SimTime:     c.time,
		Week:        c.time.Week(),
		Formatted:   fmt.Sprintf("Día %d del Mes %d, Año %d — %02d:%02d", c.time.Day, c.time.Month, c.time.Year, c.time.Hour, c.time.Minute),
		Speed:       c.speedLabel,
		IsPaused:    c.paused,
		IsMorning:   h >= 6 && h < 12,
		IsAfternoon: h >= 12 && h < 18,
		IsEvening:   h >= 18 && h < 22,
		IsNight:     h >= 22 || h < 6,
	}
}

// Snapshot exports the full clock state for the save collaborator.
func (c *GameClock) Snapshot() State {
	return State{Time: c.time, Speed: c.speedLabel, Accumulator: c.accumulator}
}

// Restore loads a snapshot. Unknown speed labels fall back to normal rather
// than corrupting the preset.
func (c *GameClock) Restore(s State) {
	c.time = s.Time
	c.accumulator = s.Accumulator
	if !c.SetSpeed(s.Speed) {
		c.SetSpeed(SpeedNormal)
	}
}
