package testgen

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// GenerateBundle returns a zip archive holding one artifact per format, the
// shape of the bulk-export endpoint's payload.
func GenerateBundle(opts ArtifactOptions) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	base := sanitizeBase(opts.title())
	writeZipFile(zw, base+".epub", GenerateEPUB(opts))
	writeZipFile(zw, base+".pdf", GeneratePDF(opts))
	writeZipFile(zw, base+".docx", GenerateDOCX(opts))

	_ = zw.Close()
	return buf.Bytes()
}

// GenerateCoverPNG returns a decodable PNG cover image.
func GenerateCoverPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 120, 180))
	for y := 0; y < 180; y++ {
		for x := 0; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func sanitizeBase(title string) string {
	out := make([]rune, 0, len(title))
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "book"
	}
	return string(out)
}
