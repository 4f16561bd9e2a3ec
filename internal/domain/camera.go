package domain

// FacingMode selects the front or back camera.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Flip returns the opposite facing mode.
func (f FacingMode) Flip() FacingMode {
	if f == FacingEnvironment {
		return FacingUser
	}
	return FacingEnvironment
}

// Label is the human name used in notifications.
func (f FacingMode) Label() string {
	if f == FacingEnvironment {
		return "Back"
	}
	return "Front"
}

// ParseFacingMode falls back to the front camera for unknown values.
func ParseFacingMode(s string) FacingMode {
	if FacingMode(s) == FacingEnvironment {
		return FacingEnvironment
	}
	return FacingUser
}

// DeviceKind mirrors the platform's media device kinds.
type DeviceKind string

const (
	DeviceKindVideoInput  DeviceKind = "videoinput"
	DeviceKindAudioInput  DeviceKind = "audioinput"
	DeviceKindAudioOutput DeviceKind = "audiooutput"
)

// CameraDescriptor identifies an enumerated capture device.
type CameraDescriptor struct {
	DeviceID string     `json:"device_id"`
	Label    string     `json:"label"`
	Kind     DeviceKind `json:"kind"`
}

// IsVideoInput reports whether the device can provide a video stream.
func (c CameraDescriptor) IsVideoInput() bool {
	return c.Kind == DeviceKindVideoInput
}

// ImageBuffer is an encoded still captured from a stream.
type ImageBuffer struct {
	ID       string `json:"id"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Data     []byte `json:"-"`
}

// Empty reports whether nothing was captured.
func (b ImageBuffer) Empty() bool {
	return len(b.Data) == 0
}
