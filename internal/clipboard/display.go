package clipboard

import (
	"errors"
	"os"
)

// ErrNoDisplay is returned when no graphical session is available.
var ErrNoDisplay = errors.New("clipboard requires DISPLAY or WAYLAND_DISPLAY")

// ErrEmpty is returned when the clipboard holds no data of the requested kind.
var ErrEmpty = errors.New("clipboard is empty")

func hasDisplay() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
