package tokens

// Platform values accepted at registration time.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// DeviceToken is a push delivery endpoint registered by a client install.
// Tokens are opaque to this service; the push gateway owns their lifecycle.
type DeviceToken struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}
