package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/labelshot/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventSave fires when annotations or a rendered image are written to disk.
	EventSave Event = "save"
	// EventMerge fires when AI results are merged into the document.
	EventMerge Event = "merge"
	// EventCopy fires when data is copied to the clipboard.
	EventCopy Event = "copy"
)

// EventPreference describes formatting for a notification event.
type EventPreference struct {
	Template string
}

// Preferences describes notification behaviour.
type Preferences struct {
	Title  string
	Events map[Event]EventPreference
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "labelshot",
		Events: map[Event]EventPreference{
			EventSave:  {Template: "Saved %s"},
			EventMerge: {Template: "Merged %s"},
			EventCopy:  {Template: "Copied %s to clipboard"},
		},
	}
}

// LoadPreferences applies LABELSHOT_NOTIFY_* overrides to the defaults.
func LoadPreferences() Preferences {
	prefs := DefaultPreferences()
	if v := strings.TrimSpace(os.Getenv("LABELSHOT_NOTIFY_TITLE")); v != "" {
		prefs.Title = v
	}
	apply := func(key string, event Event) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			prefs.Events[event] = EventPreference{Template: v}
		}
	}
	apply("LABELSHOT_NOTIFY_SAVE_TEXT", EventSave)
	apply("LABELSHOT_NOTIFY_MERGE_TEXT", EventMerge)
	apply("LABELSHOT_NOTIFY_COPY_TEXT", EventCopy)
	return prefs
}

var send = platform.Notify

// Notifier sends OS-level notifications for enabled events. A nil Notifier
// is valid and silent.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	log     logrus.FieldLogger
}

// New creates a new Notifier using the provided preferences.
func New(prefs Preferences, log logrus.FieldLogger) *Notifier {
	cloned := Preferences{Title: prefs.Title, Events: make(map[Event]EventPreference, len(prefs.Events))}
	for k, v := range prefs.Events {
		cloned.Events[k] = v
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool), log: log}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// Save notifies about a written file. The icon is the file itself when it
// is an image.
func (n *Notifier) Save(path string) {
	if !n.enabledFor(EventSave) {
		return
	}
	detail := strings.TrimSpace(path)
	opts := platform.Options{}
	if abs, err := filepath.Abs(path); err == nil {
		detail = abs
		if ext := strings.ToLower(filepath.Ext(abs)); ext == ".png" || ext == ".jpg" || ext == ".jpeg" {
			opts.IconPath = abs
		}
	}
	n.dispatch(EventSave, detail, opts)
}

// Merge notifies about merged AI annotations.
func (n *Notifier) Merge(created, skipped int) {
	if !n.enabledFor(EventMerge) {
		return
	}
	detail := fmt.Sprintf("%d annotations", created)
	if skipped > 0 {
		detail += fmt.Sprintf(" (%d skipped)", skipped)
	}
	n.dispatch(EventMerge, detail, platform.Options{})
}

// Copy sends a clipboard notification.
func (n *Notifier) Copy(detail string) {
	if !n.enabledFor(EventCopy) {
		return
	}
	if strings.TrimSpace(detail) == "" {
		detail = "image"
	}
	n.dispatch(EventCopy, detail, platform.Options{})
}

func (n *Notifier) enabledFor(event Event) bool {
	return n != nil && n.enabled[event]
}

func (n *Notifier) dispatch(event Event, detail string, opts platform.Options) {
	template := strings.TrimSpace(n.prefs.Events[event].Template)
	if template == "" {
		return
	}
	var body string
	if strings.Contains(template, "%s") {
		body = fmt.Sprintf(template, strings.TrimSpace(detail))
	} else {
		body = template
	}
	if err := send(n.prefs.Title, strings.TrimSpace(body), opts); err != nil {
		n.log.WithFields(logrus.Fields{"event": string(event)}).WithError(err).Warn("notification failed")
	}
}
