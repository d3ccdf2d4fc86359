// Package presentation turns the monitor's state into tray-style text: a short
// title plus a list of menu lines. It holds no state of its own.
package presentation

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ternarybob/usagebar/internal/models"
)

// Menu actions a surface may bind to a line
const (
	ActionRefresh  = "refresh"
	ActionSettings = "settings"
	ActionQuit     = "quit"
)

const (
	TitleLoading = "Loading..."
	TitleError   = "Error"
	TitleSetup   = "Setup"

	notAvailable = "N/A"
)

// MenuLine is one entry of the indicator's menu
type MenuLine struct {
	Label     string `json:"label,omitempty"`
	Enabled   bool   `json:"enabled"`
	Separator bool   `json:"separator,omitempty"`
	Action    string `json:"action,omitempty"`
}

// Display is everything a tray-like surface needs to render
type Display struct {
	Title string     `json:"title"`
	Lines []MenuLine `json:"lines"`
}

func info(label string) MenuLine {
	return MenuLine{Label: label}
}

func action(label, name string) MenuLine {
	return MenuLine{Label: label, Enabled: true, Action: name}
}

var separator = MenuLine{Separator: true}

// Render builds the display for state; now anchors the reset countdowns
func Render(state models.UsageState, now time.Time) Display {
	switch {
	case state.NeedsSettings():
		return Display{
			Title: TitleSetup,
			Lines: []MenuLine{
				info("Not configured"),
				info("Paste a copied curl command in Settings"),
				separator,
				action("Settings", ActionSettings),
				action("Quit", ActionQuit),
			},
		}

	case state.Error != "":
		return Display{
			Title: TitleError,
			Lines: []MenuLine{
				info("Failed to fetch usage"),
				info(state.Error),
				separator,
				action("Refresh", ActionRefresh),
				action("Settings", ActionSettings),
				action("Quit", ActionQuit),
			},
		}

	case state.Snapshot == nil:
		return Display{
			Title: TitleLoading,
			Lines: []MenuLine{
				info(TitleLoading),
				separator,
				action("Settings", ActionSettings),
				action("Quit", ActionQuit),
			},
		}
	}

	snap := state.Snapshot
	fiveHour, _ := snap.Window(models.WindowFiveHour)
	sevenDay, _ := snap.Window(models.WindowSevenDay)
	opus, _ := snap.Window(models.WindowSevenDayOpus)

	lastUpdated := notAvailable
	if !state.UpdatedAt.IsZero() {
		lastUpdated = FormatTime(state.UpdatedAt)
	}

	return Display{
		Title: Title(snap),
		Lines: []MenuLine{
			info("Usage"),
			separator,
			info("5-hour limit: " + FormatPercent(fiveHour.Utilization)),
			info("  Resets in: " + FormatReset(fiveHour.ResetsAt, now)),
			separator,
			info("7-day limit: " + FormatPercent(sevenDay.Utilization)),
			info("  Resets in: " + FormatReset(sevenDay.ResetsAt, now)),
			separator,
			info("Opus (7-day): " + FormatPercent(opus.Utilization)),
			separator,
			info("Last updated: " + lastUpdated),
			action("Refresh now", ActionRefresh),
			separator,
			action("Settings", ActionSettings),
			action("Quit", ActionQuit),
		},
	}
}

// Title is the compact indicator text, e.g. "S:8% W:91%"
func Title(snap *models.UsageSnapshot) string {
	return fmt.Sprintf("S:%s W:%s",
		FormatPercent(snap.Utilization(models.WindowFiveHour)),
		FormatPercent(snap.Utilization(models.WindowSevenDay)))
}

// FormatPercent prints utilization without trailing zeros: 8 -> "8%", 12.5 -> "12.5%"
func FormatPercent(utilization float64) string {
	return strconv.FormatFloat(utilization, 'f', -1, 64) + "%"
}

// FormatReset renders the time until resetsAt as "<h>h <m>m" below a day and
// "<d>d <h>h" otherwise. A reset already passed reads as "0h 0m".
func FormatReset(resetsAt *time.Time, now time.Time) string {
	if resetsAt == nil {
		return notAvailable
	}

	diff := resetsAt.Sub(now)
	if diff < 0 {
		diff = 0
	}

	hours := int(diff / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dd %dh", hours/24, hours%24)
}

// FormatTime renders a local wall-clock time as HH:MM:SS
func FormatTime(t time.Time) string {
	return t.Local().Format("15:04:05")
}
