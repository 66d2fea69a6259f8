// Package imaging classifies and normalizes candidate images.
//
// The Filter downloads candidates (through the shared download cache) and
// keeps probable content images: at least 200px on each side, aspect ratio
// at most 3:1, and above a configurable minimum byte size. Classification
// is heuristic; the package promises plausibility, not correctness.
//
// The Preprocessor turns an accepted image into its transmission form:
// EXIF orientation applied, alpha composited onto white, grayscale,
// longest edge capped, JPEG re-encoded. The original download is retained
// untouched for display.
package imaging
