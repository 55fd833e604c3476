package serialize

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/goliatone/go-formsync/pkg/upload"
)

// Part is one multipart entry: either a text value or a file.
type Part struct {
	Name  string
	Value string
	File  *upload.Pending
}

// Payload is an ordered multipart body.
type Payload struct {
	Parts []Part
}

// Empty reports whether the payload carries no entries.
func (p Payload) Empty() bool {
	return len(p.Parts) == 0
}

// Keys returns the distinct entry names in first-appearance order.
func (p Payload) Keys() []string {
	seen := make(map[string]struct{}, len(p.Parts))
	var keys []string
	for _, part := range p.Parts {
		if _, ok := seen[part.Name]; ok {
			continue
		}
		seen[part.Name] = struct{}{}
		keys = append(keys, part.Name)
	}
	return keys
}

// Has reports whether any entry is named name.
func (p Payload) Has(name string) bool {
	for _, part := range p.Parts {
		if part.Name == name {
			return true
		}
	}
	return false
}

// Values returns the text values sent under name, in order.
func (p Payload) Values(name string) []string {
	var out []string
	for _, part := range p.Parts {
		if part.Name == name && part.File == nil {
			out = append(out, part.Value)
		}
	}
	return out
}

// Files returns the uploads sent under name, in order.
func (p Payload) Files(name string) []*upload.Pending {
	var out []*upload.Pending
	for _, part := range p.Parts {
		if part.Name == name && part.File != nil {
			out = append(out, part.File)
		}
	}
	return out
}

func (p *Payload) add(name, value string) {
	p.Parts = append(p.Parts, Part{Name: name, Value: value})
}

func (p *Payload) addFile(name string, file *upload.Pending) {
	p.Parts = append(p.Parts, Part{Name: name, File: file})
}

// WriteMultipart encodes the payload as multipart/form-data into w and returns the
// content type, boundary included.
func (p Payload) WriteMultipart(w io.Writer) (string, error) {
	mw := multipart.NewWriter(w)
	for _, part := range p.Parts {
		if part.File == nil {
			if err := mw.WriteField(part.Name, part.Value); err != nil {
				return "", fmt.Errorf("serialize: write %s: %w", part.Name, err)
			}
			continue
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			escapeQuotes(part.Name), escapeQuotes(part.File.Filename)))
		contentType := part.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		fw, err := mw.CreatePart(header)
		if err != nil {
			return "", fmt.Errorf("serialize: create %s: %w", part.Name, err)
		}
		if _, err := io.Copy(fw, part.File.Reader()); err != nil {
			return "", fmt.Errorf("serialize: copy %s: %w", part.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("serialize: close body: %w", err)
	}
	return mw.FormDataContentType(), nil
}

// Body renders the payload into memory.
func (p Payload) Body() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	contentType, err := p.WriteMultipart(&buf)
	if err != nil {
		return nil, "", err
	}
	return &buf, contentType, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
