package aigc

import (
	"strings"
)

// IsImage reports whether a media type is an image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// DescribeMIME returns a human file kind, used in attachment hints.
func DescribeMIME(mimeType string) string {
	switch {
	case mimeType == "":
		return ""
	case strings.Contains(mimeType, "image"):
		return "รูปภาพ"
	case strings.Contains(mimeType, "pdf"):
		return "เอกสาร PDF"
	case strings.Contains(mimeType, "sheet") || strings.Contains(mimeType, "excel"):
		return "เอกสาร Excel"
	case strings.Contains(mimeType, "word") || strings.Contains(mimeType, "officedocument"):
		return "เอกสาร Word"
	case strings.Contains(mimeType, "text"):
		return "ไฟล์ข้อความ"
	}
	return "ไฟล์ชนิด " + mimeType
}

// LabelMIME returns a short badge like PDF, DOC or XLS.
func LabelMIME(mimeType string) string {
	switch {
	case mimeType == "":
		return "FILE"
	case strings.Contains(mimeType, "sheet") || strings.Contains(mimeType, "excel"):
		return "XLS"
	case strings.Contains(mimeType, "word") || strings.Contains(mimeType, "officedocument"):
		return "DOC"
	case strings.Contains(mimeType, "pdf"):
		return "PDF"
	}
	_, sub, _ := strings.Cut(mimeType, "/")
	if sub == "" {
		return "FILE"
	}
	if len(sub) > 4 {
		sub = sub[:4]
	}
	return strings.ToUpper(sub)
}
