package model

// Vehicle is immutable once registered.
// The performance attributes are expected on compatible scales,
// typically 0-500 for speed/horsepower and 0-100 for handling/durability.
type Vehicle struct {
	ID         int     `json:"id"`
	TeamID     int     `json:"teamId"`
	Model      string  `json:"model"`
	Speed      float64 `json:"speed"`
	Horsepower float64 `json:"horsepower"`
	Handling   float64 `json:"handling"`
	Durability float64 `json:"durability"`
}
