package config

// RedactedConfig returns a copy of cfg, with its maps and slices copied
// rather than shared, with sensitive fields
// replaced by the redaction placeholder "***". Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed, per spec.md §7 ("no user sees raw stack traces" extended to
// operator logs never showing raw secrets).
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Vault.Passphrase = redactIfSet(cfg.Vault.Passphrase)

	out.Venues = make(map[string]VenueConfig, len(cfg.Venues))
	for tag, v := range cfg.Venues {
		v.APIKey = redactIfSet(v.APIKey)
		v.APISecret = redactIfSet(v.APISecret)
		out.Venues[tag] = v
	}

	out.Redis.Password = redactIfSet(cfg.Redis.Password)
	out.S3.AccessKey = redactIfSet(cfg.S3.AccessKey)
	out.S3.SecretKey = redactIfSet(cfg.S3.SecretKey)
	out.Notify.TelegramToken = redactIfSet(cfg.Notify.TelegramToken)
	out.Notify.DiscordWebhookURL = redactIfSet(cfg.Notify.DiscordWebhookURL)

	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Scheduler.Jobs != nil {
		out.Scheduler.Jobs = make(map[string]string, len(cfg.Scheduler.Jobs))
		for k, v := range cfg.Scheduler.Jobs {
			out.Scheduler.Jobs[k] = v
		}
	}

	return out
}

const redacted = "***"

func redactIfSet(s string) string {
	if s == "" {
		return s
	}
	return redacted
}
