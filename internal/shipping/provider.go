package shipping

import "context"

// Request is the serviceability function's input. Dimensions are in kg and cm.
type Request struct {
	Pincode string  `json:"pincode" validate:"required,len=6,numeric"`
	Weight  float64 `json:"weight" validate:"gte=0"`
	Length  float64 `json:"length" validate:"gte=0"`
	Breadth float64 `json:"breadth" validate:"gte=0"`
	Height  float64 `json:"height" validate:"gte=0"`
}

// Result is the serviceability answer for a pincode and package.
type Result struct {
	Serviceable bool   `json:"serviceable"`
	COD         bool   `json:"cod"`
	DisplayDate string `json:"display_date"`
}

// Client checks whether a package can be delivered to a pincode.
type Client interface {
	Check(ctx context.Context, req Request) (Result, error)
}
