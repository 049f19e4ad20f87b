package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type wordDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    wordBody `xml:"body"`
}

type wordBody struct {
	Paragraphs []wordParagraph `xml:"p"`
}

type wordParagraph struct {
	Runs []wordRun `xml:"r"`
}

type wordRun struct {
	Text   []string    `xml:"t"`
	Breaks []wordBreak `xml:"br"`
}

type wordBreak struct {
	Type string `xml:"type,attr"`
}

func (r wordRun) pageBreak() bool {
	for _, br := range r.Breaks {
		if br.Type == "page" {
			return true
		}
	}
	return false
}

// ExtractDOCX reads word/document.xml and splits the text on explicit page
// breaks. A document without page breaks is a single page.
func ExtractDOCX(data []byte) ([]string, error) {
	reader := bytes.NewReader(data)

	zipReader, err := zip.NewReader(reader, int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read DOCX as ZIP: %w", err)
	}

	var documentFile *zip.File
	for _, file := range zipReader.File {
		if file.Name == "word/document.xml" {
			documentFile = file
			break
		}
	}

	if documentFile == nil {
		return nil, fmt.Errorf("document.xml not found in DOCX")
	}

	xmlFile, err := documentFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer xmlFile.Close()

	xmlData, err := io.ReadAll(xmlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read document.xml: %w", err)
	}

	var doc wordDocument
	if err := xml.Unmarshal(xmlData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var pages []string
	var page strings.Builder
	hasText := false

	flush := func() {
		text := strings.TrimSpace(page.String())
		if text != "" {
			hasText = true
		}
		pages = append(pages, text)
		page.Reset()
	}

	for _, para := range doc.Body.Paragraphs {
		for _, run := range para.Runs {
			for _, t := range run.Text {
				page.WriteString(t)
			}
			if run.pageBreak() {
				flush()
			}
		}
		page.WriteString("\n")
	}
	flush()

	if !hasText {
		return nil, fmt.Errorf("no text could be extracted from DOCX")
	}

	return pages, nil
}
