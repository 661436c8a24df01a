package entities

import "time"

// DeviceMessage is a classified line from the microcontroller. It is one of
// DetectionEvent, VerificationRequest or Unrecognized.
type DeviceMessage interface {
	deviceMessage()
}

// DetectionEvent is sent by the ultrasonic sensor.
type DetectionEvent struct {
	Present    bool
	ReceivedAt time.Time
}

// VerificationRequest is a code entered on the keypad for a listing.
type VerificationRequest struct {
	ListingID     string
	SubmittedCode string
}

// Unrecognized is any line the bridge does not understand.
type Unrecognized struct {
	Line   string
	Reason string
}

func (DetectionEvent) deviceMessage()      {}
func (VerificationRequest) deviceMessage() {}
func (Unrecognized) deviceMessage()        {}
