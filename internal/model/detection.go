package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Box is an axis-aligned rectangle in image pixel coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Detection represents a recognized object in an image.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   Box     `json:"box"`
}

// Row is a single line of the detections table: label, score and box corners.
type Row struct {
	Label string
	Score float64
	X1    float64
	Y1    float64
	X2    float64
	Y2    float64
}

// NewRow rounds the score to 4 decimals and the box corners to 2 decimals.
func NewRow(d Detection) Row {
	return Row{
		Label: d.Label,
		Score: Round(d.Score, 4),
		X1:    Round(d.Box.X1, 2),
		Y1:    Round(d.Box.Y1, 2),
		X2:    Round(d.Box.X2, 2),
		Y2:    Round(d.Box.Y2, 2),
	}
}

// MarshalJSON encodes the row as a 6-element array [label, score, x1, y1, x2, y2].
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Label, r.Score, r.X1, r.Y1, r.X2, r.Y2})
}

// UnmarshalJSON decodes the array form produced by MarshalJSON.
func (r *Row) UnmarshalJSON(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 6 {
		return fmt.Errorf("row: expected 6 fields, got %d", len(fields))
	}
	if err := json.Unmarshal(fields[0], &r.Label); err != nil {
		return err
	}
	for i, dst := range []*float64{&r.Score, &r.X1, &r.Y1, &r.X2, &r.Y2} {
		if err := json.Unmarshal(fields[i+1], dst); err != nil {
			return err
		}
	}
	return nil
}

// Round rounds v to the given number of decimal places. Rounding is decided on
// the exact binary value of v, and exact halves go to the even digit.
func Round(v float64, places int) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}
