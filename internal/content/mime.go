// Package content fetches request payloads, turns them into predictor
// inputs and uploads rendered results.  One handler exists per content
// family: opaque files, still images and video.
package content

import "strings"

// Well-known MIME types handled by the pipeline.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEMP4  = "video/mp4"
	MIMEAVI  = "video/avi"
	MIMEMOV  = "video/quicktime"
	MIMEMKV  = "video/x-matroska"
	MIMEJSON = "application/json"
	MIMECSV  = "text/csv"
	MIMEPDF  = "application/pdf"
	MIMEBin  = "application/octet-stream"
)

var extByMIME = map[string]string{
	MIMEJPEG: ".jpg",
	MIMEPNG:  ".png",
	MIMEGIF:  ".gif",
	MIMEMP4:  ".mp4",
	MIMEAVI:  ".avi",
	MIMEMOV:  ".mov",
	MIMEMKV:  ".mkv",
	MIMEJSON: ".json",
	MIMECSV:  ".csv",
	MIMEPDF:  ".pdf",
	MIMEBin:  ".bin",
}

// Ext returns the filename extension for a MIME type, ".bin" when unknown.
func Ext(mimeType string) string {
	if ext, ok := extByMIME[normalizeMIME(mimeType)]; ok {
		return ext
	}
	return ".bin"
}

// normalizeMIME strips parameters such as charset and lowercases the type.
func normalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
