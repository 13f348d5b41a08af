package constants

import "strings"

// Supported upload types, lower-case without the dot.
const (
	FileTypePDF  = "pdf"
	FileTypeDOC  = "doc"
	FileTypeDOCX = "docx"
	FileTypeJPEG = "jpeg"
	FileTypeJPG  = "jpg"
	FileTypePNG  = "png"
)

// Adapter families a file type dispatches to.
const (
	FormatPDF   = "PDF"
	FormatWord  = "WORD"
	FormatImage = "IMAGE"
)

// SupportedFileTypes maps every accepted file type to its adapter family.
var SupportedFileTypes = map[string]string{
	FileTypePDF:  FormatPDF,
	FileTypeDOC:  FormatWord,
	FileTypeDOCX: FormatWord,
	FileTypeJPEG: FormatImage,
	FileTypeJPG:  FormatImage,
	FileTypePNG:  FormatImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapTypeToFormat returns the adapter family for a file type, or "" when unsupported.
func MapTypeToFormat(fileType string) string {
	return SupportedFileTypes[NormalizeExt(fileType)]
}

func IsSupported(fileType string) bool {
	return MapTypeToFormat(fileType) != ""
}
