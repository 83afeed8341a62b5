package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"NewsDigest/internal/logging"
	"NewsDigest/internal/ports"
)

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseTimes parses "HH:MM" entries and returns them sorted and deduplicated.
func ParseTimes(raw []string) ([]ClockTime, error) {
	seen := map[ClockTime]bool{}
	var out []ClockTime
	for _, entry := range raw {
		hh, mm, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("run time %q: want HH:MM", entry)
		}
		h, errH := strconv.Atoi(hh)
		m, errM := strconv.Atoi(mm)
		if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return nil, fmt.Errorf("run time %q: want HH:MM", entry)
		}
		c := ClockTime{Hour: h, Minute: m}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out, nil
}

// NextRun returns the first configured time strictly after now, in loc.
func NextRun(now time.Time, times []ClockTime, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	for day := 0; day <= 1; day++ {
		y, mo, d := local.AddDate(0, 0, day).Date()
		for _, t := range times {
			candidate := time.Date(y, mo, d, t.Hour, t.Minute, 0, 0, loc)
			if candidate.After(local) {
				return candidate
			}
		}
	}
	return time.Time{}
}

// DailyScheduler fires a job at fixed wall-clock times every day.
type DailyScheduler struct {
	times  []ClockTime
	loc    *time.Location
	logger *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*DailyScheduler)(nil)

// NewDailyScheduler builds a scheduler firing at each of times in loc.
func NewDailyScheduler(times []ClockTime, loc *time.Location, logger *slog.Logger) *DailyScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{times: times, loc: loc, logger: logging.OrDiscard(logger)}
}

// Start launches the timer goroutine. Calling Start twice is a no-op.
func (c *DailyScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || len(c.times) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.loop(ctx, job, c.stop, c.done)
	return nil
}

func (c *DailyScheduler) loop(ctx context.Context, job func(time.Time), stop, done chan struct{}) {
	defer close(done)
	for {
		next := NextRun(time.Now(), c.times, c.loc)
		c.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))
		timer := time.NewTimer(time.Until(next))
		select {
		case t := <-timer.C:
			job(t)
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// Stop halts the timer goroutine and waits for it to exit.
func (c *DailyScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
