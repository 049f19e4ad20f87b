package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Capeo/SupplAI/internal/models"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeTXT  = "text/plain"
)

// ExtractionError reports a document that could not be turned into text.
type ExtractionError struct {
	Filename string
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	msg := "extract"
	if e.Filename != "" {
		msg += " " + e.Filename
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extract converts a document into page texts. The extractor is selected by
// the normalized content type of the document.
func Extract(doc models.Document) (text *models.ExtractedText, err error) {
	if len(doc.Data) == 0 {
		return nil, &ExtractionError{Filename: doc.Filename, Reason: "empty document"}
	}

	contentType := DetectContentType(doc.Filename, doc.ContentType, doc.Data)

	// The PDF parser panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text = nil
			err = &ExtractionError{Filename: doc.Filename, Reason: "corrupt document", Err: fmt.Errorf("%v", r)}
		}
	}()

	var pages []string
	switch contentType {
	case ContentTypePDF:
		pages, err = ExtractPDF(doc.Data)
	case ContentTypeDOCX:
		pages, err = ExtractDOCX(doc.Data)
	case ContentTypeTXT:
		pages, err = ExtractTXT(doc.Data)
	default:
		return nil, &ExtractionError{
			Filename: doc.Filename,
			Reason:   fmt.Sprintf("unsupported content type %q", contentType),
		}
	}
	if err != nil {
		return nil, &ExtractionError{Filename: doc.Filename, Reason: "failed to read " + contentType, Err: err}
	}

	return &models.ExtractedText{Pages: pages}, nil
}

// DetectContentType determines the content type from the filename extension,
// then the declared type, then the leading bytes of the payload.
func DetectContentType(filename, declared string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return ContentTypePDF
	case ".docx":
		return ContentTypeDOCX
	case ".txt":
		return ContentTypeTXT
	}

	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.Index(declared, ";"); i != -1 {
		declared = strings.TrimSpace(declared[:i])
	}

	switch {
	case declared == ContentTypePDF:
		return ContentTypePDF
	case isDOCXContentType(declared):
		return ContentTypeDOCX
	case isTXTContentType(declared):
		return ContentTypeTXT
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return ContentTypePDF
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return ContentTypeDOCX
	}

	return declared
}

// IsSupported reports whether Extract can handle the content type.
func IsSupported(contentType string) bool {
	switch contentType {
	case ContentTypePDF, ContentTypeDOCX, ContentTypeTXT:
		return true
	}
	return false
}

// isDOCXContentType handles the DOCX MIME variants browsers send.
func isDOCXContentType(contentType string) bool {
	switch contentType {
	case ContentTypeDOCX,
		"application/vnd.openxmlformats-officedocument.wordprocessingml",
		"application/docx",
		"application/x-docx":
		return true
	}
	return false
}

func isTXTContentType(contentType string) bool {
	switch contentType {
	case ContentTypeTXT, "text/txt", "application/txt", "application/x-txt":
		return true
	}
	return false
}
