// Package codec decodes source images and re-encodes them into the supported
// output formats.
//
// Formats and their encoders:
//   - JPEG: image/jpeg, lossy, quality from [QualityFor].
//   - PNG, GIF: standard library, quality ignored.
//   - BMP, TIFF: golang.org/x/image, quality ignored.
//   - HEIC: external HEIF tool (libheif heif-enc, or sips on macOS), lossy.
//   - WEBP: no encoder; always fails with [ErrNoEncoder].
//
// Decoding sniffs content rather than trusting the file extension. WebP input
// is decoded with golang.org/x/image/webp; HEIC input goes through the same
// external HEIF tool used for encoding.
package codec
