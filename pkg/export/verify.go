package export

import (
	"archive/zip"
	"bytes"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/bookwrightapp/bookwright/pkg/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pkg/errors"
	"golang.org/x/image/webp"
)

// verifyArtifact checks a downloaded blob before anything is written to the
// download directory: the sniffed type must match what the server declared,
// PDFs must parse with at least one page, and bundles must contain one
// artifact per format. A truncated or mislabeled download fails here instead
// of landing on disk.
func verifyArtifact(format models.ExportFormat, data []byte, declaredType string) error {
	if len(data) == 0 {
		return errors.New("downloaded artifact is empty")
	}

	detected := mimetype.Detect(data)

	switch format {
	case models.ExportFormatEPUB:
		if !detected.Is("application/epub+zip") {
			return errors.Errorf("expected an EPUB but sniffed %s", detected.String())
		}
	case models.ExportFormatPDF:
		if !detected.Is("application/pdf") {
			return errors.Errorf("expected a PDF but sniffed %s", detected.String())
		}
		pages, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			return errors.Wrap(err, "PDF failed validation")
		}
		if pages < 1 {
			return errors.New("PDF has no pages")
		}
	case models.ExportFormatDOCX:
		// DOCX is zip-based; some sniffers only get as far as the container.
		if !detected.Is(models.ExportFormatDOCX.ContentType()) && !detected.Is("application/zip") {
			return errors.Errorf("expected a DOCX but sniffed %s", detected.String())
		}
	case models.ExportFormatBundle:
		if !detected.Is("application/zip") {
			return errors.Errorf("expected a zip bundle but sniffed %s", detected.String())
		}
		if err := verifyBundle(data); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown export format %q", format)
	}

	if declaredType != "" && declaredType != format.ContentType() {
		return errors.Errorf("server declared %s for a %s export", declaredType, format)
	}
	return nil
}

// verifyBundle confirms the archive holds one artifact per bundled format.
func verifyBundle(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return errors.Wrap(err, "bundle is not a readable zip")
	}

	found := map[string]bool{}
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		for _, format := range models.BundleFormats {
			if strings.HasSuffix(name, "."+format.Extension()) {
				found[format.Extension()] = true
			}
		}
	}

	for _, format := range models.BundleFormats {
		if !found[format.Extension()] {
			return errors.Errorf("bundle is missing a %s artifact", format)
		}
	}
	return nil
}

// verifyCover decodes the downloaded cover and returns the extension to save
// it under. JPEG, PNG, and WebP are the formats the backend produces.
func verifyCover(data []byte) (string, error) {
	detected := mimetype.Detect(data)

	switch {
	case detected.Is("image/png"):
		if _, err := png.Decode(bytes.NewReader(data)); err != nil {
			return "", errors.Wrap(err, "cover PNG failed to decode")
		}
		return "png", nil
	case detected.Is("image/jpeg"):
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			return "", errors.Wrap(err, "cover JPEG failed to decode")
		}
		return "jpg", nil
	case detected.Is("image/webp"):
		if _, err := webp.Decode(bytes.NewReader(data)); err != nil {
			return "", errors.Wrap(err, "cover WebP failed to decode")
		}
		return "webp", nil
	}
	return "", errors.Errorf("cover has unsupported type %s", detected.String())
}
