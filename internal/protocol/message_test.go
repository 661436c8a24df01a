package protocol

import (
	"testing"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		line string
		want entities.DeviceMessage
	}{
		{
			name: "detection present",
			line: "ULTRA:1",
			want: entities.DetectionEvent{Present: true},
		},
		{
			name: "detection absent",
			line: "ULTRA:0",
			want: entities.DetectionEvent{Present: false},
		},
		{
			name: "verification",
			line: "CHECK:42:1234",
			want: entities.VerificationRequest{ListingID: "42", SubmittedCode: "1234"},
		},
		{
			name: "verification with padding",
			line: "CHECK: 42 : 1234 ",
			want: entities.VerificationRequest{ListingID: "42", SubmittedCode: "1234"},
		},
		{
			name: "verification too few fields",
			line: "CHECK:42",
			want: entities.Unrecognized{Line: "CHECK:42", Reason: "verification needs exactly 3 fields"},
		},
		{
			name: "verification too many fields",
			line: "CHECK:42:12:34",
			want: entities.Unrecognized{Line: "CHECK:42:12:34", Reason: "verification needs exactly 3 fields"},
		},
		{
			name: "verification empty listing",
			line: "CHECK::1234",
			want: entities.Unrecognized{Line: "CHECK::1234", Reason: "empty listing id"},
		},
		{
			name: "verification empty code",
			line: "CHECK:42:",
			want: entities.Unrecognized{Line: "CHECK:42:", Reason: "empty code"},
		},
		{
			name: "detection bad payload",
			line: "ULTRA:yes",
			want: entities.Unrecognized{Line: "ULTRA:yes", Reason: "detection payload must be 0 or 1"},
		},
		{
			name: "unknown",
			line: "ACK",
			want: entities.Unrecognized{Line: "ACK", Reason: "unknown prefix"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.line)

			// ReceivedAt is a wall clock stamp; compare the rest.
			if d, ok := got.(entities.DetectionEvent); ok {
				if d.ReceivedAt.IsZero() {
					t.Error("DetectionEvent should be stamped")
				}
				want, ok := tt.want.(entities.DetectionEvent)
				if !ok || want.Present != d.Present {
					t.Fatalf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
				}
				return
			}

			if got != tt.want {
				t.Errorf("Classify(%q) = %#v, want %#v", tt.line, got, tt.want)
			}
		})
	}
}
