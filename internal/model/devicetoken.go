package model

import "time"

// Platform tags where a device token came from.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// DeviceToken is one push-channel destination for a recipient. Owned by the
// token store; the delivery pipeline only reads it and requests deletion when
// the provider reports it permanently invalid.
type DeviceToken struct {
	ID          string
	RecipientID string
	Token       string
	Platform    Platform
	Enabled     bool
	CreatedAt   time.Time
}
