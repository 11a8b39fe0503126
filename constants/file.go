package constants

import "strings"

// ContentTypePDF is the content type every provider portal serves invoices as.
const ContentTypePDF = "application/pdf"

// AllowedExtensions holds the file extensions accepted when scanning a
// source directory for invoice documents.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
