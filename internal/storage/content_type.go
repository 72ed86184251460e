package storage

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// =============================================================================
// Content Types
// =============================================================================

const (
	TypePDF  = "application/pdf"
	TypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeText = "text/plain"
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeGIF  = "image/gif"
	TypeWebP = "image/webp"
)

// uploadTypes maps every accepted upload type to its canonical extension.
var uploadTypes = map[string]string{
	TypePDF:  ".pdf",
	TypeDOCX: ".docx",
	TypeText: ".txt",
	TypeJPEG: ".jpg",
	TypePNG:  ".png",
	TypeGIF:  ".gif",
	TypeWebP: ".webp",
}

// baseType lowercases a MIME type and drops its parameters.
func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(strings.ToLower(t))
}

// DetectContentType sniffs head (the first bytes of the file). The declared
// type from the client is never trusted; the extension only tells a DOCX
// apart from any other zip archive.
func DetectContentType(filename string, head []byte) string {
	sniffed := baseType(http.DetectContentType(head))
	if sniffed == "application/zip" && strings.EqualFold(path.Ext(filename), ".docx") {
		return TypeDOCX
	}
	return sniffed
}

// IsAllowedUpload reports whether contentType may be uploaded.
func IsAllowedUpload(contentType string) bool {
	_, ok := uploadTypes[baseType(contentType)]
	return ok
}

// IsImage reports whether contentType is an image format.
func IsImage(contentType string) bool {
	return strings.HasPrefix(baseType(contentType), "image/")
}

// TypeForExtension is the inverse of ExtensionFor. Unknown extensions fall
// back to the system MIME table.
func TypeForExtension(ext string) string {
	ext = strings.ToLower(ext)
	for t, e := range uploadTypes {
		if e == ext {
			return t
		}
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ExtensionFor returns the canonical extension of an accepted upload type.
func ExtensionFor(contentType string) string {
	if ext, ok := uploadTypes[baseType(contentType)]; ok {
		return ext
	}
	return ".bin"
}
