package message

import "time"

// Platform identifies the upstream service a message came from.
type Platform string

const (
	PlatformGmail    Platform = "gmail"
	PlatformSlack    Platform = "slack"
	PlatformWhatsApp Platform = "whatsapp"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{PlatformGmail, PlatformSlack, PlatformWhatsApp}
}

// ParsePlatform validates a platform name, typically taken from a URL path.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(s) {
	case PlatformGmail, PlatformSlack, PlatformWhatsApp:
		return Platform(s), true
	}
	return "", false
}

// RawMessage is a provider message after adapter normalization but before
// annotation and persistence.
type RawMessage struct {
	Platform   Platform
	ExternalID string
	Sender     string
	Content    string
	Metadata   map[string]string
	CreatedAt  time.Time
}

// NewRaw creates a raw message stamped with the current time.
func NewRaw(platform Platform, externalID, sender, content string) RawMessage {
	return RawMessage{
		Platform:   platform,
		ExternalID: externalID,
		Sender:     sender,
		Content:    content,
		Metadata:   make(map[string]string),
		CreatedAt:  time.Now(),
	}
}
