package payload

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
)

// DetectMIME sniffs the media type of data, without parameters such as
// charset.
func DetectMIME(data []byte) string {
	m := mimetype.Detect(data).String()
	base, _, _ := strings.Cut(m, ";")
	return strings.TrimSpace(base)
}

// CleanName reduces a path to its NFC-normalised base name. Both slash
// styles count as separators.
func CleanName(name string) string {
	if name == "" {
		return ""
	}
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "." || name == ".." {
		return ""
	}
	return norm.NFC.String(name)
}

// Describe fills in the MIME type and name a caller left empty. The MIME
// type is sniffed from data and the name is taken from fallbackName.
func Describe(data []byte, mimeType, name, fallbackName string) (string, string) {
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	if name == "" {
		name = fallbackName
	}
	return mimeType, CleanName(name)
}
