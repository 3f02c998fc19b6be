package main

import "time"

type Config struct {
	APIBaseURL        string        `env:"API_BASE_URL,required=true"`
	FeedURL           string        `env:"FEED_URL,required=true"`
	AccessToken       string        `env:"ACCESS_TOKEN,required=true"`
	ConversationID    string        `env:"CONVERSATION_ID,required=true"`
	HistoryLimit      *int          `env:"HISTORY_LIMIT"`
	GraceWindow       time.Duration `env:"GRACE_WINDOW,default=500ms"`
	FetchDelay        time.Duration `env:"FETCH_DELAY,default=100ms"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT,default=10s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL,default=1s"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	TelemetryInterval time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	PageSize          int           `env:"PAGE_SIZE,default=50"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath     string        `env:"BLUGE_FILEPATH,required=true"`
	LogLevel          string        `env:"LOG_LEVEL,required=true"`
}
