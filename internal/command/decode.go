package command

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// The decode table is evaluated top to bottom and the first match wins, so
// more specific grammars must precede the ones they would shadow: the AL
// range query before the single-position A commands, and the time-limited
// add before the plain add. Every pattern is anchored, and none of them
// captures the leading password into the produced description.
var decodeTable = []struct {
	re       *regexp.Regexp
	classify func(m []string) Command
}{
	{
		re: regexp.MustCompile(`^\d{4}CC$`),
		classify: func(_ []string) Command {
			return Command{Kind: KindOpen, Action: "Gate Open", Details: "Opened the relay", Category: CategoryRelay}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}DD$`),
		classify: func(_ []string) Command {
			return Command{Kind: KindClose, Action: "Gate Close", Details: "Closed the relay", Category: CategoryRelay}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}EE$`),
		classify: func(_ []string) Command {
			return Command{Kind: KindStatus, Action: "Status Check", Details: "Requested device status", Category: CategorySystem}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}P(\d{4})(\d{4})#$`),
		classify: func(_ []string) Command {
			// Old and new passwords are both redacted.
			return Command{Kind: KindPasswordChange, Action: "Password Change", Details: "Changed device password", Category: CategorySettings}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}AL(\d{3})#(\d{3})#$`),
		classify: func(m []string) Command {
			return Command{
				Kind:      KindUserQueryRange,
				Action:    "User Management",
				Details:   fmt.Sprintf("Queried users from position %s to %s", m[1], m[2]),
				Category:  CategoryUser,
				Serial:    m[1],
				SerialEnd: m[2],
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}A(\d{3})#([^#]+)#(\d{10})#(\d{10})#$`),
		classify: func(m []string) Command {
			return Command{
				Kind:      KindUserAdd,
				Action:    "User Management",
				Details:   fmt.Sprintf("Added user %s at position %s, valid %s to %s", m[2], m[1], FormatTime(m[3]), FormatTime(m[4])),
				Category:  CategoryUser,
				Serial:    m[1],
				Phone:     m[2],
				StartTime: m[3],
				EndTime:   m[4],
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}A(\d{3})#([^#]+)#$`),
		classify: func(m []string) Command {
			return Command{
				Kind:     KindUserAdd,
				Action:   "User Management",
				Details:  fmt.Sprintf("Added user %s at position %s", m[2], m[1]),
				Category: CategoryUser,
				Serial:   m[1],
				Phone:    m[2],
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}A(\d{3})##$`),
		classify: func(m []string) Command {
			return Command{
				Kind:     KindUserRemove,
				Action:   "User Management",
				Details:  fmt.Sprintf("Removed user at position %s", m[1]),
				Category: CategoryUser,
				Serial:   m[1],
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}A(\d{3})#$`),
		classify: func(m []string) Command {
			return Command{
				Kind:     KindUserQuery,
				Action:   "User Management",
				Details:  fmt.Sprintf("Queried user at position %s", m[1]),
				Category: CategoryUser,
				Serial:   m[1],
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}(AUT|ALL)#$`),
		classify: func(m []string) Command {
			details := "Set access control to authorized callers only"
			if AccessMode(m[1]) == AccessAll {
				details = "Set access control to all callers"
			}
			return Command{
				Kind:     KindAccessControl,
				Action:   "Access Control",
				Details:  details,
				Category: CategorySettings,
				Mode:     AccessMode(m[1]),
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}GOT(\d{3})#$`),
		classify: func(m []string) Command {
			return Command{
				Kind:      KindLatchTime,
				Action:    "Latch Time",
				Details:   latchDetails(m[1]),
				Category:  CategorySettings,
				LatchTime: m[1],
			}
		},
	},
	{
		re: regexp.MustCompile(`^\d{4}TEL(\d+)#$`),
		classify: func(m []string) Command {
			return Command{
				Kind:        KindAdminRegister,
				Action:      "Admin Registration",
				Details:     fmt.Sprintf("Registered admin number %s", m[1]),
				Category:    CategorySettings,
				AdminNumber: m[1],
			}
		},
	},
}

// Decode classifies a raw command string. It never fails: a string that
// matches no known grammar is reported as KindUnknown with a generic
// description, not an error.
func Decode(raw string) Command {
	for _, entry := range decodeTable {
		if m := entry.re.FindStringSubmatch(raw); m != nil {
			return entry.classify(m)
		}
	}
	return Command{
		Kind:     KindUnknown,
		Action:   "Device Command",
		Details:  "Sent command to device",
		Category: CategorySystem,
	}
}

func latchDetails(latch string) string {
	switch latch {
	case LatchMomentary:
		return "Set relay to momentary mode"
	case LatchToggle:
		return "Set relay to toggle mode"
	}
	seconds, _ := strconv.Atoi(latch)
	return fmt.Sprintf("Set relay to close for %d seconds", seconds)
}

// FormatTime renders a 10-digit YYMMDDHHMM command timestamp as a short
// display string, e.g. "2408050800" becomes "Aug 5, 2024 08:00". Strings
// that do not parse are returned unchanged.
func FormatTime(yymmddhhmm string) string {
	t, err := time.Parse("0601021504", yymmddhhmm)
	if err != nil {
		return yymmddhhmm
	}
	return t.Format("Jan 2, 2006 15:04")
}
