package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// GenerateDOCX returns a minimal OOXML word document: content types,
// relationships, and a document body with one paragraph per page.
func GenerateDOCX(opts ArtifactOptions) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	contentTypes := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`
	writeZipFile(zw, "[Content_Types].xml", []byte(contentTypes))

	rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`
	writeZipFile(zw, "_rels/.rels", []byte(rels))

	var body strings.Builder
	for i := 1; i <= opts.pageCount(); i++ {
		fmt.Fprintf(&body, "<w:p><w:r><w:t>%s - page %d</w:t></w:r></w:p>", escapeXML(opts.title()), i)
	}
	document := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>%s</w:body>
</w:document>`, body.String())
	writeZipFile(zw, "word/document.xml", []byte(document))

	_ = zw.Close()
	return buf.Bytes()
}
