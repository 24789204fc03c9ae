// Package naming builds output paths for converted images and resolves
// collisions between outputs of one batch.
//
// An output keeps the input's base name and takes the target format's
// extension: /in/IMG_0001.HEIC converted to JPEG lands at <dest>/IMG_0001.jpeg.
// Multi-file batches get their own Converted_YYYYMMDDHHMMSS folder.
package naming
