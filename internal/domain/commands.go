package domain

// CommandDef describes a slash command available to the user.
type CommandDef struct {
	Name        string
	Description string
}

// CommandDefs is the single source of truth for all slash commands.
var CommandDefs = []CommandDef{
	{Name: "/start", Description: "welcome message and shortcut buttons"},
	{Name: "/help", Description: "show this help"},
	{Name: "/menu", Description: "show the function menu"},
	{Name: "/status", Description: "show your user ID, chat ID and whitelist state"},
	{Name: "/ping", Description: "liveness check with uptime"},
}

// ---------------------------------------------------------------------------
// Inline keyboard callback tags
// ---------------------------------------------------------------------------

// CallbackView is a closed set of inline-button targets. Using a typed
// constant set instead of raw string matching keeps the dispatch table
// exhaustive in one place.
type CallbackView string

const (
	ViewMenu     CallbackView = "menu"
	ViewAbout    CallbackView = "about"
	ViewSettings CallbackView = "settings"
	ViewHelp     CallbackView = "help"
	ViewBack     CallbackView = "back"
	ViewShare    CallbackView = "share"
	ViewTask1    CallbackView = "task_1"
	ViewTask2    CallbackView = "task_2"
	ViewTask3    CallbackView = "task_3"
	ViewTask4    CallbackView = "task_4"
)

// KnownViews lists every dispatchable callback view.
var KnownViews = []CallbackView{
	ViewMenu, ViewAbout, ViewSettings, ViewHelp, ViewBack, ViewShare,
	ViewTask1, ViewTask2, ViewTask3, ViewTask4,
}

// TaskNumber returns the 1-based slot for the task views, false otherwise.
func TaskNumber(v CallbackView) (int, bool) {
	switch v {
	case ViewTask1:
		return 1, true
	case ViewTask2:
		return 2, true
	case ViewTask3:
		return 3, true
	case ViewTask4:
		return 4, true
	}
	return 0, false
}

// ParseCallbackView maps a raw callback-data tag to its view. The second
// return is false for tags outside the closed set.
func ParseCallbackView(data string) (CallbackView, bool) {
	v := CallbackView(data)
	for _, known := range KnownViews {
		if v == known {
			return v, true
		}
	}
	return "", false
}
