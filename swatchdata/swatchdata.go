// Package swatchdata parses and holds the per-swatch color/image metadata
// attached to a widget container.
//
// The serialized form is a JSON array, but because it travels inside an HTML
// attribute it frequently arrives entity-escaped (&quot;, &#34;, &amp;).
// Parse tries the strict form first and falls back to entity decoding; only a
// double failure is reported, as a *DataError the caller logs rather than
// propagates.
package swatchdata

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Image is one entry of a swatch's image set.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Record is the metadata for a single selectable color.
type Record struct {
	ColorName  string  `json:"color_name"`
	ColorValue string  `json:"color_value,omitempty"`
	ProductID  string  `json:"product_id,omitempty"`
	ImageURL   string  `json:"image_url,omitempty"`
	ImageAlt   string  `json:"image_alt,omitempty"`
	Images     []Image `json:"images,omitempty"`
	IsCurrent  bool    `json:"is_current,omitempty"`
}

// ImageList returns the record's image set, falling back to the single-image
// fields when Images is empty. A record with neither yields an empty list.
func (r Record) ImageList() []Image {
	if len(r.Images) > 0 {
		return r.Images
	}
	if r.ImageURL != "" {
		return []Image{{URL: r.ImageURL, Alt: r.ImageAlt}}
	}
	return nil
}

// DataError reports malformed or missing swatch data for a container. The
// container is left uninitialized and retried on the next coordinator pass.
type DataError struct {
	Reason string
	Err    error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("swatchdata: %s: %v", e.Reason, e.Err)
	}
	return "swatchdata: " + e.Reason
}

func (e *DataError) Unwrap() error { return e.Err }

// Parse decodes a serialized record list. Strict JSON first; if that fails
// the input is HTML-entity decoded and parsed again. A double failure or an
// empty record list is a *DataError.
func Parse(raw string) ([]Record, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &DataError{Reason: "empty swatch data"}
	}

	var records []Record
	strictErr := json.Unmarshal([]byte(raw), &records)
	if strictErr != nil {
		decoded := html.UnescapeString(raw)
		if err := json.Unmarshal([]byte(decoded), &records); err != nil {
			return nil, &DataError{Reason: "unparseable swatch data", Err: strictErr}
		}
	}

	if len(records) == 0 {
		return nil, &DataError{Reason: "no swatch records"}
	}
	return records, nil
}

// FindCurrentIndex returns the index of the first record with IsCurrent set,
// or 0 when none is marked. Never negative.
func FindCurrentIndex(records []Record) int {
	for i, r := range records {
		if r.IsCurrent {
			return i
		}
	}
	return 0
}
