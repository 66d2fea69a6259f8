package model

// ImageCandidate is a single image reference discovered inside the main
// content region of an article page. Candidates are deduplicated by URL
// across the whole crawl, preserving first-seen order.
type ImageCandidate struct {
	// URL is the absolute, canonical image URL.
	URL string

	// AltText is the img element's alt attribute, possibly empty.
	AltText string

	// Page is the 1-based pagination rank of the page the image was found on.
	Page int

	// Episode is the 1-based episode counter at discovery time.
	// Single-article runs always use episode 1.
	Episode int
}

// ContentImage is an ImageCandidate that passed the content heuristics
// (minimum byte size, minimum dimensions, aspect ratio) and has been
// downloaded and preprocessed.
type ContentImage struct {
	ImageCandidate

	// RawBytes is the image as downloaded. Retained for display only;
	// it is never sent to the analysis service.
	RawBytes []byte

	// Width and Height are the decoded pixel dimensions of RawBytes.
	Width  int
	Height int

	// ByteSize is len(RawBytes), kept separately so the raw payload can be
	// released while diagnostics still report the original size.
	ByteSize int

	// TransmitBytes is the recompressed, downscaled derivative of RawBytes
	// produced by the preprocessor. This is what extraction requests carry.
	TransmitBytes []byte

	// TransmitMediaType is the media type of TransmitBytes (image/jpeg
	// after preprocessing).
	TransmitMediaType string
}

// AspectRatio returns width/height, or 0 when the height is unknown.
func (c *ContentImage) AspectRatio() float64 {
	if c.Height <= 0 {
		return 0
	}
	return float64(c.Width) / float64(c.Height)
}
