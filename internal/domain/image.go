package domain

import "encoding/base64"

// ImageMIMEType sniffs PNG and JPEG by their leading magic bytes. Anything
// else is reported as PNG.
func ImageMIMEType(b []byte) string {
	if len(b) >= 4 && b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 {
		return "image/png"
	}
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	return "image/png"
}

// ImageDataURI encodes image bytes as a data URI, or returns placeholder when
// there is no image.
func ImageDataURI(b []byte, placeholder string) string {
	if len(b) == 0 {
		return placeholder
	}
	return "data:" + ImageMIMEType(b) + ";base64," + base64.StdEncoding.EncodeToString(b)
}
