package config

func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		APIURL:         "http://localhost:3000",
		DataDirectory:  "~/.local/share/wikichat",
		WelcomeMessage: "Hi! Ask me anything about this site's documentation.",
		AutosaveDelay:  "2s",
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func GenerateConfigTemplate(visitorID string) string {
	return `# wikichat configuration
# Location: ~/.config/wikichat/config.toml
# This file uses TOML format: https://toml.io

# Backend root; chat and admin endpoints are resolved against it
api_url = "http://localhost:3000"

# Restrict answers to one site (0 = all sites)
site_id = 0

# Anonymous identifier sent with every chat request. Generated on first run.
visitor_id = "` + visitorID + `"

# Bearer token for admin endpoints (collection tree). Prefer WIKICHAT_ADMIN_TOKEN.
# admin_token = ""

# Drafts, the local thread index and logs live here
data_directory = "~/.local/share/wikichat"

# First assistant message of every new conversation
welcome_message = "Hi! Ask me anything about this site's documentation."

# Quiet period before an unsent draft is saved
autosave_delay = "2s"

[log]
# debug, info, warn, error
level = "info"
# console or json
format = "console"

[keys]
# Override any action; see "wikichat keys" for the list.
# reset = "ctrl+n"
`
}
