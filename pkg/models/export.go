package models

// ExportFormat identifies a downloadable artifact format. Bundle is a zip
// archive containing one artifact per concrete format.
type ExportFormat string

const (
	ExportFormatEPUB   ExportFormat = "epub"
	ExportFormatPDF    ExportFormat = "pdf"
	ExportFormatDOCX   ExportFormat = "docx"
	ExportFormatBundle ExportFormat = "bundle"
)

// BundleFormats are the concrete formats included in a bundle export.
var BundleFormats = []ExportFormat{ExportFormatEPUB, ExportFormatPDF, ExportFormatDOCX}

// ContentType returns the content type the server declares for the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatEPUB:
		return "application/epub+zip"
	case ExportFormatPDF:
		return "application/pdf"
	case ExportFormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ExportFormatBundle:
		return "application/zip"
	}
	return "application/octet-stream"
}

// Extension returns the file extension, without the leading dot.
func (f ExportFormat) Extension() string {
	if f == ExportFormatBundle {
		return "zip"
	}
	return string(f)
}

func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatEPUB, ExportFormatPDF, ExportFormatDOCX, ExportFormatBundle:
		return true
	}
	return false
}
