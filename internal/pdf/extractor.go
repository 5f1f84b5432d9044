// Package pdfutil pulls plain text out of drawing PDFs.
package pdfutil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// Result is what processing learns about a drawing.
type Result struct {
	Text  string
	Pages int
	// Title is the first non-empty line of text, usually the sheet title
	// from the title block.
	Title string
}

// Extract reads PDF bytes and returns plain text using ledongthuc/pdf.
// Pages without content are counted but contribute no text.
func Extract(data []byte) (Result, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("new pdf reader: %w", err)
	}
	var builder strings.Builder
	total := doc.NumPage()
	for page := 1; page <= total; page++ {
		p := doc.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}
	text := builder.String()
	return Result{Text: text, Pages: total, Title: FirstLine(text)}, nil
}

// ExtractFromReader drains the reader before passing along to Extract.
func ExtractFromReader(r io.Reader) (Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read pdf: %w", err)
	}
	return Extract(data)
}

// FirstLine returns the first line that is not blank, trimmed.
func FirstLine(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}
