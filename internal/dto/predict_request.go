package dto

// PredictRequest is the body accepted by POST /predict. A missing threshold
// means the default.
type PredictRequest struct {
	ImageURL  string   `json:"image_url"`
	Threshold *float64 `json:"threshold"`
}
