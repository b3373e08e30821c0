package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	YouTube  YouTubeConfig  `json:"youtube"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Watch    WatchConfig    `json:"watch,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`

	// AdminUserIDs may use /shutdown. Empty means anyone may (a warning is
	// logged at startup in that case).
	AdminUserIDs []int64 `json:"admin_user_ids,omitempty"`

	// SendRatePerSec caps outbound Telegram messages.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

// YouTubeConfig configures the Data API client.
//
// DailyQuota is the API's published unit budget; the minimum interval between
// API calls is derived from it (24h evenly divided) and is not separately
// tunable.
type YouTubeConfig struct {
	APIKey     string `json:"api_key"`
	DailyQuota int    `json:"daily_quota,omitempty"`
	RegionCode string `json:"region_code,omitempty"`
	Language   string `json:"language,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path string `json:"path,omitempty"`

	// BusyTimeout is a Go duration string (e.g. "5s").
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// WatchConfig holds knobs for the poll loop. Cycle pacing is derived from the
// YouTube quota, so the only setting here is the idle interval used when no
// playlist is subscribed yet.
type WatchConfig struct {
	// IdleInterval is a Go duration string (e.g. "30s").
	IdleInterval string `json:"idle_interval,omitempty"`
}
