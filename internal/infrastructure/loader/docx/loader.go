package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/document-qa/internal/core/domain"
)

const documentPart = "word/document.xml"

type Loader struct{}

func New() *Loader {
	return &Loader{}
}

// Load extracts one segment per body paragraph with text. Paragraph numbers
// count every body paragraph, empty ones included, so they match the editor.
func (l *Loader) Load(_ context.Context, raw []byte) ([]domain.Segment, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailure, "load docx", fmt.Errorf("open archive: %w", err))
	}

	content, err := readPart(reader, documentPart)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailure, "load docx", err)
	}

	paragraphs, err := paragraphTexts(content)
	if err != nil {
		return nil, domain.WrapError(domain.ErrLoadFailure, "load docx", fmt.Errorf("parse %s: %w", documentPart, err))
	}

	segments := make([]domain.Segment, 0, len(paragraphs))
	for i, para := range paragraphs {
		text := strings.TrimSpace(para)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:     text,
			Position: domain.Position{Paragraph: i + 1},
		})
	}
	return segments, nil
}

func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()

		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return content, nil
	}
	return nil, errors.New("archive has no " + name)
}

// paragraphTexts walks the part token by token so text wrapped in hyperlinks,
// tables, content controls and tracked insertions is kept. Paragraphs nested
// inside another paragraph (text boxes) are folded into the outer one.
func paragraphTexts(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		out    []string
		b      strings.Builder
		depth  int
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				depth++
			case "pPr":
				// Tab stop definitions live here.
				if err := dec.Skip(); err != nil {
					return nil, err
				}
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if depth == 0 {
					continue
				}
				depth--
				if depth == 0 {
					out = append(out, b.String())
					b.Reset()
				}
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
}
