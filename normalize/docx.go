package normalize

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// BlockKind classifies an extracted block of word-processor content.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockTableRow
	BlockPageBreak
)

// Block is one unit of the plain structured representation of a DOCX body.
type Block struct {
	Kind  BlockKind
	Text  string
	Level int // heading level 1-6, or list nesting level

	// Table rows only.
	Cells  []string
	Header bool // repeated at the top of each page
}

const documentPart = "word/document.xml"

// ExtractDOCX reads the body of a DOCX archive into blocks. It keeps text,
// heading levels, list items, table rows and explicit page breaks; all other
// formatting is dropped.
func ExtractDOCX(ctx context.Context, data []byte) ([]Block, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("normalize: opening DOCX archive: %w", err)
	}

	var part *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			part = f
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("normalize: not a valid DOCX file: missing %s", documentPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("normalize: opening %s: %w", documentPart, err)
	}
	defer rc.Close()

	return extractBody(ctx, xml.NewDecoder(rc))
}

func extractBody(ctx context.Context, dec *xml.Decoder) ([]Block, error) {
	dec.Strict = false

	var blocks []Block
	inBody := false
	depth := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("normalize: reading document body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			if name == "body" {
				inBody = true
				depth = 0
				continue
			}
			if !inBody {
				continue
			}
			if depth > 0 {
				depth++
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			switch name {
			case "sdt", "sdtContent", "customXml", "ins", "moveTo", "smartTag":
				// Transparent wrappers around body content.
			case "p":
				para, err := readParagraph(dec)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, para...)
			case "tbl":
				rows, err := readTable(dec)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, rows...)
			default:
				depth++
			}

		case xml.EndElement:
			if t.Name.Local == "body" {
				inBody = false
			} else if inBody && depth > 0 {
				depth--
			}
		}
	}

	return blocks, nil
}

// readParagraph consumes a w:p element. It returns the paragraph block and,
// when the paragraph contains a page break, a trailing page-break block.
func readParagraph(dec *xml.Decoder) ([]Block, error) {
	var (
		sb        strings.Builder
		style     string
		listLevel = -1
		pageBreak bool
		nested    int // text boxes can embed paragraphs
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("normalize: reading paragraph: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				nested++
			case "pStyle":
				style = attr(t, "val")
			case "numPr":
				if listLevel < 0 {
					listLevel = 0
				}
			case "ilvl":
				fmt.Sscanf(attr(t, "val"), "%d", &listLevel)
			case "t":
				text, err := readText(dec)
				if err != nil {
					return nil, err
				}
				sb.WriteString(text)
			case "tab":
				sb.WriteByte(' ')
			case "br":
				if attr(t, "type") == "page" {
					pageBreak = true
				} else {
					sb.WriteByte('\n')
				}
			}

		case xml.EndElement:
			if t.Name.Local != "p" {
				continue
			}
			if nested > 0 {
				nested--
				continue
			}
			text := strings.TrimSpace(sb.String())
			var out []Block
			switch {
			case headingLevel(style) > 0:
				out = append(out, Block{Kind: BlockHeading, Text: text, Level: headingLevel(style)})
			case listLevel >= 0:
				out = append(out, Block{Kind: BlockListItem, Text: text, Level: listLevel})
			default:
				out = append(out, Block{Kind: BlockParagraph, Text: text})
			}
			if pageBreak {
				out = append(out, Block{Kind: BlockPageBreak})
			}
			return out, nil
		}
	}
}

// readTable consumes a w:tbl element, producing one block per row. Nested
// tables are flattened into the cell that holds them.
func readTable(dec *xml.Decoder) ([]Block, error) {
	var (
		rows   []Block
		cells  []string
		cell   strings.Builder
		header bool
		depth  = 1
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("normalize: reading table: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				depth++
			case "tr":
				if depth == 1 {
					cells = nil
					header = false
				}
			case "tblHeader":
				if depth == 1 {
					header = attr(t, "val") != "false" && attr(t, "val") != "0"
				}
			case "tc":
				if depth == 1 {
					cell.Reset()
				}
			case "t":
				text, err := readText(dec)
				if err != nil {
					return nil, err
				}
				if cell.Len() > 0 {
					cell.WriteByte(' ')
				}
				cell.WriteString(text)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "tc":
				if depth == 1 {
					cells = append(cells, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if depth == 1 {
					rows = append(rows, Block{
						Kind:   BlockTableRow,
						Text:   strings.Join(cells, " | "),
						Cells:  cells,
						Header: header,
					})
				}
			case "tbl":
				depth--
				if depth == 0 {
					return rows, nil
				}
			}
		}
	}
}

func readText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("normalize: reading text run: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps built-in style ids ("Heading1".."Heading6", "Title") to a
// heading level, or 0 for body styles.
func headingLevel(style string) int {
	s := strings.ToLower(style)
	if s == "title" {
		return 1
	}
	if strings.HasPrefix(s, "heading") {
		var lvl int
		if _, err := fmt.Sscanf(s[len("heading"):], "%d", &lvl); err == nil && lvl >= 1 && lvl <= 6 {
			return lvl
		}
	}
	return 0
}
