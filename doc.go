// Package heicplanes splits HEIC containers into their image planes.
//
// Extract writes the primary image, every auxiliary image (gain maps,
// semantic mattes) and every depth image as a lossless TIFF next to a JSON
// metadata record holding the ICC profile, EXIF and XMP blobs. Composite
// recombines such a directory into a multi-layer ACEScg OpenEXR by driving
// oiiotool and exiftool. Convert runs both steps through a staging
// directory, and Inspect dumps the container structure without decoding.
package heicplanes
