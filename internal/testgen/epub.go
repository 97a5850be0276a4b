package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// GenerateEPUB returns a valid EPUB: mimetype first and uncompressed,
// container.xml, content.opf, and one xhtml chapter per page.
func GenerateEPUB(opts ArtifactOptions) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype must be the first entry and stored without compression.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err == nil {
		_, _ = w.Write([]byte("application/epub+zip"))
	}

	containerXML := `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`
	writeZipFile(zw, "META-INF/container.xml", []byte(containerXML))

	writeZipFile(zw, "OEBPS/content.opf", []byte(generateOPF(opts)))

	for i := 1; i <= opts.pageCount(); i++ {
		chapter := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Page %d</title></head>
<body><h1>Page %d</h1><p>Generated content for %s.</p></body>
</html>`, i, i, escapeXML(opts.title()))
		writeZipFile(zw, fmt.Sprintf("OEBPS/page%d.xhtml", i), []byte(chapter))
	}

	_ = zw.Close()
	return buf.Bytes()
}

func generateOPF(opts ArtifactOptions) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escapeXML(opts.title()))
	b.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:bookwright-test</dc:identifier>\n")
	b.WriteString("    <dc:language>en</dc:language>\n  </metadata>\n  <manifest>\n")
	for i := 1; i <= opts.pageCount(); i++ {
		fmt.Fprintf(&b, "    <item id=\"page%d\" href=\"page%d.xhtml\" media-type=\"application/xhtml+xml\"/>\n", i, i)
	}
	b.WriteString("  </manifest>\n  <spine>\n")
	for i := 1; i <= opts.pageCount(); i++ {
		fmt.Fprintf(&b, "    <itemref idref=\"page%d\"/>\n", i)
	}
	b.WriteString("  </spine>\n</package>\n")
	return b.String()
}

func writeZipFile(zw *zip.Writer, name string, content []byte) {
	w, err := zw.Create(name)
	if err != nil {
		return
	}
	_, _ = w.Write(content)
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
	return r.Replace(s)
}
