package mediatypes

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectMIME returns the hint to use for classification. A non-generic
// hint supplied by the client wins; otherwise the content is sniffed.
func DetectMIME(hint string, data []byte) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint != "" && hint != "application/octet-stream" {
		return hint
	}
	if len(data) == 0 {
		return hint
	}
	return mimetype.Detect(data).String()
}
