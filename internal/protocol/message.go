package protocol

import (
	"strings"
	"time"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

// Line prefixes sent by the microcontroller.
const (
	PrefixDetection    = "ULTRA:"
	PrefixVerification = "CHECK:"
)

// Classify parses a line into a DeviceMessage. It never fails: anything it
// cannot understand becomes entities.Unrecognized with a reason.
func Classify(line string) entities.DeviceMessage {
	switch {
	case strings.HasPrefix(line, PrefixDetection):
		return classifyDetection(line)
	case strings.HasPrefix(line, PrefixVerification):
		return classifyVerification(line)
	default:
		return entities.Unrecognized{Line: line, Reason: "unknown prefix"}
	}
}

func classifyDetection(line string) entities.DeviceMessage {
	payload := strings.TrimSpace(strings.TrimPrefix(line, PrefixDetection))
	switch payload {
	case "1":
		return entities.DetectionEvent{Present: true, ReceivedAt: time.Now()}
	case "0":
		return entities.DetectionEvent{Present: false, ReceivedAt: time.Now()}
	default:
		return entities.Unrecognized{Line: line, Reason: "detection payload must be 0 or 1"}
	}
}

func classifyVerification(line string) entities.DeviceMessage {
	fields := strings.Split(line, ":")
	if len(fields) != 3 {
		return entities.Unrecognized{Line: line, Reason: "verification needs exactly 3 fields"}
	}

	listingID := strings.TrimSpace(fields[1])
	code := strings.TrimSpace(fields[2])
	if listingID == "" {
		return entities.Unrecognized{Line: line, Reason: "empty listing id"}
	}
	if code == "" {
		return entities.Unrecognized{Line: line, Reason: "empty code"}
	}

	return entities.VerificationRequest{ListingID: listingID, SubmittedCode: code}
}
