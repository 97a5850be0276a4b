package testgen

import (
	"bytes"
	"fmt"
)

// GeneratePDF builds a small but well-formed PDF with a correct xref table,
// one page per requested page. It survives strict validation, which the
// export pipeline runs on downloaded PDF artifacts.
func GeneratePDF(opts ArtifactOptions) []byte {
	pages := opts.pageCount()

	// Object numbering: 1 catalog, 2 pages, 3 font, then per page: content
	// stream and page object.
	type object struct {
		num  int
		body string
	}
	var objects []object

	kids := ""
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 5+i*2)
	}

	objects = append(objects,
		object{1, "<< /Type /Catalog /Pages 2 0 R >>"},
		object{2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages)},
		object{3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"},
	)

	for i := 0; i < pages; i++ {
		text := fmt.Sprintf("%s - page %d", opts.title(), i+1)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", escapePDFString(text))
		contentNum := 4 + i*2
		pageNum := 5 + i*2
		objects = append(objects,
			object{contentNum, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)},
			object{pageNum, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentNum)},
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make(map[int]int)
	for _, obj := range objects {
		offsets[obj.num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", obj.num, obj.body)
	}

	size := len(objects) + 1
	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < size; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", size, xrefOffset)

	return buf.Bytes()
}

func escapePDFString(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', ')', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
