package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Deep mailbox refresh, daily at 03:00
	CronScheduleDeepSync string `env:"CRON_SCHEDULE_DEEP_SYNC" envDefault:"0 0 3 * * *"`
}
