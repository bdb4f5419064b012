package pdfinfo_test

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"github.com/lvillar/docfields/pdfinfo"
)

func samplePDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 1; i <= pages; i++ {
		pdf.AddPage()
		pdf.Text(40, 60, fmt.Sprintf("Page %d of %d", i, pages))
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("creating sample PDF: %v", err)
	}
	return buf.Bytes()
}

func TestPageCount(t *testing.T) {
	for _, pages := range []int{1, 3, 7} {
		n, err := pdfinfo.PageCount(samplePDF(t, pages))
		if err != nil {
			t.Fatalf("PageCount(%d pages): %v", pages, err)
		}
		if n != pages {
			t.Errorf("expected %d pages, got %d", pages, n)
		}
	}
}

func TestPageCountRejectsNonPDF(t *testing.T) {
	if _, err := pdfinfo.PageCount([]byte("PK\x03\x04 not a pdf")); err == nil {
		t.Fatal("expected error for non-PDF input")
	}
	if _, err := pdfinfo.PageCount(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestHasTextOnGarbage(t *testing.T) {
	if pdfinfo.HasText([]byte("garbage")) {
		t.Error("garbage input must not report a text layer")
	}
}

func TestPageText(t *testing.T) {
	data := samplePDF(t, 3)
	for page := 1; page <= 3; page++ {
		text, err := pdfinfo.PageText(data, page)
		if err != nil {
			t.Fatalf("PageText(%d): %v", page, err)
		}
		want := fmt.Sprintf("Page %d of 3", page)
		if !strings.Contains(text, want) {
			t.Errorf("page %d: expected %q in %q", page, want, text)
		}
	}
	for _, page := range []int{0, 4} {
		if _, err := pdfinfo.PageText(data, page); err == nil {
			t.Errorf("page %d: expected out of range error", page)
		}
	}
}

func TestPageSizes(t *testing.T) {
	dims, err := pdfinfo.PageSizes(samplePDF(t, 2))
	if err != nil {
		t.Fatalf("PageSizes: %v", err)
	}
	if len(dims) != 2 {
		t.Fatalf("expected 2 sizes, got %d", len(dims))
	}
	for i, d := range dims {
		if math.Abs(d.Width-595.28) > 0.5 || math.Abs(d.Height-841.89) > 0.5 {
			t.Errorf("page %d: expected A4, got %.2fx%.2f", i+1, d.Width, d.Height)
		}
	}
}
