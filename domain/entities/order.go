package entities

import "time"

// OrderRecord is the read-only view of an order the bridge needs.
// The web application owns the record; the bridge only reads it and
// attaches capture results to the listing it belongs to.
type OrderRecord struct {
	OrderID          string    `json:"order_id" bson:"_id"`
	ListingID        string    `json:"listing_id" bson:"listing_id"`
	ConfirmationCode string    `json:"confirmation_code" bson:"confirmation_code"`
	HasCapturedImage bool      `json:"has_captured_image" bson:"-"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}

// CaptureUpdate is written back to the record store after a pipeline run.
type CaptureUpdate struct {
	ImageRef   string    `json:"image_ref" bson:"image_ref"`
	LowPrice   *int      `json:"low_price,omitempty" bson:"low_price,omitempty"`
	Analysis   Analysis  `json:"analysis" bson:"analysis"`
	CapturedAt time.Time `json:"captured_at" bson:"captured_at"`
}

// CapturedImage is a freshly captured frame. It lives for one pipeline run.
type CapturedImage struct {
	Data     []byte
	MIMEType string
	TakenAt  time.Time
}
