package config

import (
	"sort"
	"strings"
)

// actionRegistry maps action names to their default keys. Users override
// any of them in the [keys] table of config.toml.
var actionRegistry = map[string]string{
	"send":           "enter",
	"newline":        "alt+enter",
	"reset":          "ctrl+r",
	"threads":        "ctrl+o",
	"copy_reply":     "ctrl+y",
	"export":         "ctrl+e",
	"cancel":         "esc",
	"quit":           "ctrl+c",
	"scroll_up":      "pgup",
	"scroll_down":    "pgdown",
	"toggle_sources": "ctrl+s",
	"help":           "f1",
}

// KeyBindings resolves an action to the key string bubbletea reports.
type KeyBindings struct {
	overrides map[string]string
}

func NewKeyBindings(overrides map[string]string) *KeyBindings {
	kb := &KeyBindings{overrides: make(map[string]string, len(overrides))}
	for action, key := range overrides {
		if key = strings.TrimSpace(strings.ToLower(key)); key != "" {
			kb.overrides[action] = key
		}
	}
	return kb
}

// GetActionKey returns the key for action, checking user overrides first.
// Unknown actions return "".
func (kb *KeyBindings) GetActionKey(action string) string {
	if kb != nil {
		if key, ok := kb.overrides[action]; ok {
			return key
		}
	}
	return actionRegistry[action]
}

// Is reports whether key triggers action.
func (kb *KeyBindings) Is(key, action string) bool {
	bound := kb.GetActionKey(action)
	return bound != "" && bound == key
}

// DisplayActionKey returns a display-friendly version of an action's key
// Example: "ctrl+shift+j" -> "Ctrl+Shift+J"
func (kb *KeyBindings) DisplayActionKey(action string) string {
	key := kb.GetActionKey(action)
	if key == "" {
		return ""
	}
	parts := strings.Split(key, "+")
	for i, part := range parts {
		if len(part) == 1 {
			parts[i] = strings.ToUpper(part)
		} else if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "+")
}

// Actions lists every known action name, sorted.
func Actions() []string {
	names := make([]string, 0, len(actionRegistry))
	for name := range actionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownActions returns override names that match no action.
func (kb *KeyBindings) UnknownActions() []string {
	var unknown []string
	for action := range kb.overrides {
		if _, ok := actionRegistry[action]; !ok {
			unknown = append(unknown, action)
		}
	}
	sort.Strings(unknown)
	return unknown
}
