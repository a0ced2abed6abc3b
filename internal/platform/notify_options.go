package platform

// AppName is reported to the host notification service.
const AppName = "labelshot"

// Options configures how a notification is displayed on the host platform.
type Options struct {
	// IconPath, when non-empty, points to an image the notification center
	// shows next to the message.
	IconPath string
	// Timeout in milliseconds. Zero uses the platform default.
	Timeout int32
}
