package normalize_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/normalize"
	"github.com/lvillar/docfields/pdfinfo"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// buildDOCX packs body XML into a minimal DOCX archive.
func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"></Types>`,
		"word/document.xml":   `<?xml version="1.0" encoding="UTF-8"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func createTestPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Text(40, 60, fmt.Sprintf("Page %d of %d", i, pages))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("creating test PDF: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCXBlocks(t *testing.T) {
	body := `<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Terms</w:t></w:r></w:p>` +
		para("The buyer agrees.") +
		`<w:p><w:pPr><w:numPr><w:ilvl w:val="1"/><w:numId w:val="3"/></w:numPr></w:pPr><w:r><w:t>First item</w:t></w:r></w:p>` +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Price</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>100</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:p><w:r><w:t>Before break</w:t></w:r><w:r><w:br w:type="page"/></w:r></w:p>` +
		para("After break")

	blocks, err := normalize.ExtractDOCX(context.Background(), buildDOCX(t, body))
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}

	want := []normalize.Block{
		{Kind: normalize.BlockHeading, Text: "Terms", Level: 2},
		{Kind: normalize.BlockParagraph, Text: "The buyer agrees."},
		{Kind: normalize.BlockListItem, Text: "First item", Level: 1},
		{Kind: normalize.BlockTableRow, Text: "Price | 100", Cells: []string{"Price", "100"}},
		{Kind: normalize.BlockParagraph, Text: "Before break"},
		{Kind: normalize.BlockPageBreak},
		{Kind: normalize.BlockParagraph, Text: "After break"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(blocks), blocks)
	}
	for i := range want {
		if !reflect.DeepEqual(blocks[i], want[i]) {
			t.Errorf("block %d: expected %+v, got %+v", i, want[i], blocks[i])
		}
	}
}

func TestExtractDOCXMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("word/styles.xml"); err != nil {
		t.Fatal(err)
	}
	zw.Close()

	if _, err := normalize.ExtractDOCX(context.Background(), buf.Bytes()); err == nil {
		t.Fatal("expected error for archive without word/document.xml")
	}
}

func TestNormalizeDOCXPageBreak(t *testing.T) {
	body := para("Page one") + `<w:p><w:r><w:br w:type="page"/></w:r></w:p>` + para("Page two")
	n := normalize.New()

	out, err := n.Normalize(context.Background(), document.KindWordProcessor, buildDOCX(t, body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.PageCount != 2 {
		t.Errorf("expected 2 pages, got %d", out.PageCount)
	}
	if !out.HasText {
		t.Error("expected HasText for a document with paragraphs")
	}
	if !bytes.HasPrefix(out.PDF, []byte("%PDF")) {
		t.Fatal("output does not start with %PDF header")
	}

	counted, err := pdfinfo.PageCount(out.PDF)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if counted != out.PageCount {
		t.Errorf("reported %d pages, PDF has %d", out.PageCount, counted)
	}
}

func TestNormalizeDOCXFlowsOntoSeveralPages(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 200; i++ {
		body.WriteString(para(fmt.Sprintf("Clause %d. The parties agree to the terms set out in this clause.", i+1)))
	}

	out, err := normalize.New().Normalize(context.Background(), document.KindWordProcessor, buildDOCX(t, body.String()))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.PageCount < 2 {
		t.Errorf("expected the body to flow onto several pages, got %d", out.PageCount)
	}
}

func TestNormalizeEmptyDOCXHasOnePage(t *testing.T) {
	out, err := normalize.New().Normalize(context.Background(), document.KindWordProcessor, buildDOCX(t, ""))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.PageCount != 1 {
		t.Errorf("expected 1 page, got %d", out.PageCount)
	}
	if out.HasText {
		t.Error("empty document must not report text")
	}
}

func TestNormalizePDFPassthrough(t *testing.T) {
	data := createTestPDF(t, 3)

	out, err := normalize.New().Normalize(context.Background(), document.KindPDF, data)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.PageCount != 3 {
		t.Errorf("expected 3 pages, got %d", out.PageCount)
	}
	if !bytes.Equal(out.PDF, data) {
		t.Error("PDF sources must pass through unchanged")
	}
}

func TestNormalizeFailures(t *testing.T) {
	n := normalize.New()
	ctx := context.Background()

	if _, err := n.Normalize(ctx, document.KindWordProcessor, []byte("not a zip")); err == nil {
		t.Error("expected error for corrupt DOCX")
	}
	if _, err := n.Normalize(ctx, document.KindPDF, []byte("not a pdf")); err == nil {
		t.Error("expected error for corrupt PDF")
	}
	if _, err := n.Normalize(ctx, document.Kind("image"), nil); err == nil {
		t.Error("expected error for unsupported kind")
	}
}

func TestNormalizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := normalize.New().Normalize(ctx, document.KindWordProcessor, buildDOCX(t, para("x")))
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func tableRow(header bool, cells ...string) string {
	var sb strings.Builder
	sb.WriteString(`<w:tr>`)
	if header {
		sb.WriteString(`<w:trPr><w:tblHeader/></w:trPr>`)
	}
	for _, c := range cells {
		sb.WriteString(`<w:tc><w:p><w:r><w:t>` + c + `</w:t></w:r></w:p></w:tc>`)
	}
	sb.WriteString(`</w:tr>`)
	return sb.String()
}

func TestExtractDOCXTableHeader(t *testing.T) {
	body := `<w:tbl>` + tableRow(true, "Item", "Qty") + tableRow(false, "Desk", "2") + `</w:tbl>`
	blocks, err := normalize.ExtractDOCX(context.Background(), buildDOCX(t, body))
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 rows, got %+v", blocks)
	}
	if !blocks[0].Header || blocks[1].Header {
		t.Errorf("only the first row is a header row: %+v", blocks)
	}
	if !reflect.DeepEqual(blocks[1].Cells, []string{"Desk", "2"}) {
		t.Errorf("unexpected cells %q", blocks[1].Cells)
	}
}

func TestNormalizeDOCXLongTable(t *testing.T) {
	var body strings.Builder
	body.WriteString(para("Schedule of items"))
	body.WriteString(`<w:tbl>`)
	body.WriteString(tableRow(true, "Item", "Description", "Amount"))
	for i := 0; i < 120; i++ {
		body.WriteString(tableRow(false, fmt.Sprintf("%d", i+1), "Office chair, ergonomic, with armrests", "150.00"))
	}
	body.WriteString(`</w:tbl>`)
	body.WriteString(para("End of schedule"))

	out, err := normalize.New().Normalize(context.Background(), document.KindWordProcessor, buildDOCX(t, body.String()))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if out.PageCount < 2 {
		t.Errorf("expected the table to continue onto a second page, got %d pages", out.PageCount)
	}
	counted, err := pdfinfo.PageCount(out.PDF)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if counted != out.PageCount {
		t.Errorf("reported %d pages, PDF has %d", out.PageCount, counted)
	}
}

func TestExtractDOCXContentControls(t *testing.T) {
	body := `<w:sdt><w:sdtPr><w:alias w:val="Party"/><w:text/></w:sdtPr><w:sdtContent>` +
		para("Buyer: {{buyerName}}") +
		`</w:sdtContent></w:sdt>` +
		`<w:customXml w:element="clause">` + para("Clause one") + `</w:customXml>` +
		`<w:ins w:id="1" w:author="A"><w:tbl>` + tableRow(false, "Price", "100") + `</w:tbl></w:ins>` +
		`<w:del w:id="2" w:author="A">` + para("Removed text") + `</w:del>`

	blocks, err := normalize.ExtractDOCX(context.Background(), buildDOCX(t, body))
	if err != nil {
		t.Fatalf("ExtractDOCX: %v", err)
	}
	want := []normalize.Block{
		{Kind: normalize.BlockParagraph, Text: "Buyer: {{buyerName}}"},
		{Kind: normalize.BlockParagraph, Text: "Clause one"},
		{Kind: normalize.BlockTableRow, Text: "Price | 100", Cells: []string{"Price", "100"}},
	}
	if !reflect.DeepEqual(blocks, want) {
		t.Errorf("unexpected blocks:\n got %+v\nwant %+v", blocks, want)
	}

	out, err := normalize.New().Normalize(context.Background(), document.KindWordProcessor, buildDOCX(t, body))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !out.HasText {
		t.Error("content inside content controls must count as text")
	}
}
