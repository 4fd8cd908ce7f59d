package services

import (
	"context"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// Clock supplies "today" as a calendar day for a given user.
type Clock interface {
	Today(ctx context.Context, userID string) (core.Date, error)
}

// ZoneClock resolves today in each user's own timezone. Resolved locations
// are cached per user; Forget drops an entry after the user changes it.
type ZoneClock struct {
	zones     TimezoneSource
	locations cache.Cache[*time.Location]
	fallback  *time.Location
	now       func() time.Time
	logger    *applog.Logger
}

func NewZoneClock(zones TimezoneSource, fallback *time.Location, locations cache.Cache[*time.Location], logger *applog.Logger) *ZoneClock {
	if fallback == nil {
		fallback = time.UTC
	}
	if logger == nil {
		logger = applog.Default()
	}
	return &ZoneClock{
		zones:     zones,
		locations: locations,
		fallback:  fallback,
		now:       time.Now,
		logger:    logger,
	}
}

// WithNow replaces the wall clock, for tests and replays.
func (c *ZoneClock) WithNow(now func() time.Time) *ZoneClock {
	c.now = now
	return c
}

func (c *ZoneClock) Today(ctx context.Context, userID string) (core.Date, error) {
	loc, err := c.location(ctx, userID)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(c.now().In(loc)), nil
}

// Forget drops the cached location of userID.
func (c *ZoneClock) Forget(userID string) {
	if c.locations != nil {
		c.locations.Delete(userID)
	}
}

func (c *ZoneClock) location(ctx context.Context, userID string) (*time.Location, error) {
	if c.locations != nil {
		if loc, ok := c.locations.Get(userID); ok {
			return loc, nil
		}
	}
	if c.zones == nil {
		return c.fallback, nil
	}

	name, err := c.zones.UserTimezone(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: applog.OpToday, Err: err}
	}

	loc := c.fallback
	if name != "" {
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		} else {
			c.logger.WarnContext(ctx, "Unknown user timezone, using fallback",
				applog.FieldUserID, userID,
				"timezone", name,
				"fallback", c.fallback.String())
		}
	}

	if c.locations != nil {
		c.locations.Set(userID, loc)
	}
	return loc, nil
}
