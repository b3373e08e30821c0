package config

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultDailyQuota is the YouTube Data API's free per-project budget.
	DefaultDailyQuota = 10000

	defaultRegionCode = "US"
	defaultLanguage   = "en_US"
)

// Validate checks required fields and fills defaults in place.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or set TELEGRAM_TOKEN)")
	}
	if strings.TrimSpace(c.YouTube.APIKey) == "" {
		return errors.New("youtube.api_key is required (or set YOUTUBE_KEY)")
	}
	if c.YouTube.DailyQuota < 0 {
		return errors.New("youtube.daily_quota must be >= 0")
	}
	if c.YouTube.DailyQuota == 0 {
		c.YouTube.DailyQuota = DefaultDailyQuota
	}
	if strings.TrimSpace(c.YouTube.RegionCode) == "" {
		c.YouTube.RegionCode = defaultRegionCode
	}
	if strings.TrimSpace(c.YouTube.Language) == "" {
		c.YouTube.Language = defaultLanguage
	}
	if c.Telegram.SendRatePerSec < 0 {
		return errors.New("telegram.send_rate_per_sec must be >= 0")
	}

	// Durations are validated here so a bad string is caught at load time,
	// not when the component first reads it.
	if _, err := ParseDuration("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDuration("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDuration("watch.idle_interval", c.Watch.IdleInterval); err != nil {
		return err
	}
	return nil
}

// RequestInterval derives the minimum spacing between YouTube API calls from
// the daily quota, evenly divided. 10 000 units/day comes out to 8.64s.
func (c *Config) RequestInterval() time.Duration {
	quota := c.YouTube.DailyQuota
	if quota <= 0 {
		quota = DefaultDailyQuota
	}
	return 24 * time.Hour / time.Duration(quota)
}
