// Package candidate defines the canonical data model shared by every
// provider: the quiz question (poster plus options) and the candidate
// answers collected for it. Provider-specific response shapes are adapter
// concerns and stay out of this package.
package candidate

import "time"

// Record is one provider's proposed answer for an option title. Records with
// the same ID are the same candidate regardless of which provider returned
// them, so fan-in consumers must deduplicate by ID.
type Record struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	ImgURL string `json:"img"`
	// ByteLength is the size of the canonical poster in bytes. Zero means
	// the provider did not supply it and it has not been probed yet.
	ByteLength uint64 `json:"img_len,omitempty"`
}

// Resolved reports whether the record carries a usable byte length.
func (r Record) Resolved() bool {
	return r.ByteLength > 0
}

// Poster is the quiz's displayed image. It is immutable once fetched;
// resolution never writes to it.
type Poster struct {
	CaptureDate time.Time
	URL         string
	ByteLength  uint64
}

// Option is one labeled choice offered by the quiz. Value is the opaque form
// value submitted when the option is chosen.
type Option struct {
	Title string
	Value string
}

// Question is a single quiz instance. The poster's byte length must be
// populated before answer resolution starts.
type Question struct {
	Poster  Poster
	Options []Option
}

// Matches applies the byte-length heuristic: a resolved candidate answers the
// question when its poster is exactly offset bytes away from the displayed
// one. Unresolved records never match.
func Matches(r Record, p Poster, offset uint64) bool {
	if !r.Resolved() {
		return false
	}
	var diff uint64
	if r.ByteLength > p.ByteLength {
		diff = r.ByteLength - p.ByteLength
	} else {
		diff = p.ByteLength - r.ByteLength
	}
	return diff == offset
}
