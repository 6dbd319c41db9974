// Package featureflags evaluates FEATURE_FLAGS, a comma-separated list of
// name=value pairs such as "push_notifications=on,event_reminders=25%".
package featureflags

import (
	"hash/fnv"
	"maps"
	"strconv"
	"strings"
)

// FlagPushNotifications gates device push for a receiver. Rows are still stored
// when it is off; only the push is skipped.
const FlagPushNotifications = "push_notifications"

// rollout is a parsed flag value: the share of users, 0 to 100, that see it.
// on/true/1 parse to 100 and off/false/0 to 0.
type rollout int

func parseRollout(value string) (rollout, bool) {
	switch value {
	case "on", "true", "1":
		return 100, true
	case "off", "false", "0":
		return 0, true
	}
	pct, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(pct)
	if err != nil {
		return 0, false
	}
	return rollout(min(max(n, 0), 100)), true
}

// Manager holds the flags parsed at startup. A nil Manager has no flags.
type Manager struct {
	raw   map[string]string
	rules map[string]rollout
}

// NewManager parses raw. Malformed pairs are skipped; an unparseable value is
// kept in Raw but evaluates as off.
func NewManager(raw string) *Manager {
	m := &Manager{raw: map[string]string{}, rules: map[string]rollout{}}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		m.raw[key] = value
		if r, ok := parseRollout(value); ok {
			m.rules[key] = r
		}
	}
	return m
}

func (m *Manager) lookup(name string) (rollout, bool) {
	if m == nil {
		return 0, false
	}
	if _, configured := m.raw[normalize(name)]; !configured {
		return 0, false
	}
	return m.rules[normalize(name)], true
}

// Enabled reports whether name is on for userID. Partial rollouts hash the
// flag name with the user ID so a user stays in or out across restarts, and
// never include the anonymous user 0.
func (m *Manager) Enabled(name string, userID uint) bool {
	r, _ := m.lookup(name)
	switch {
	case r >= 100:
		return true
	case r <= 0, userID == 0:
		return false
	default:
		return bucket(name, userID) < int(r)
	}
}

// EnabledOr is Enabled with fallback for flags that are not configured.
func (m *Manager) EnabledOr(name string, userID uint, fallback bool) bool {
	if _, ok := m.lookup(name); !ok {
		return fallback
	}
	return m.Enabled(name, userID)
}

// Raw returns a copy of the configured values.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m.raw)
}

// Snapshot evaluates every configured flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := map[string]bool{}
	if m == nil {
		return out
	}
	for name := range m.raw {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func bucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name) + ":" + strconv.FormatUint(uint64(userID), 10)))
	return int(h.Sum32() % 100)
}
