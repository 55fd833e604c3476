// Package upload models files selected for upload but not yet sent, and the
// preview references that accompany them. A preview is a scoped resource: it
// is acquired when a file is selected and must be released when the file is
// replaced, removed, or the editing session ends.
package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Pending is a file chosen for upload. The zero value is not usable; build
// one with Open or FromBytes.
type Pending struct {
	Filename    string
	ContentType string

	data    []byte
	preview string
}

// FromBytes wraps in-memory content. The content type is derived from the
// extension, falling back to content sniffing.
func FromBytes(filename string, data []byte) *Pending {
	name := filepath.Base(filename)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Pending{
		Filename:    name,
		ContentType: contentType,
		data:        append([]byte(nil), data...),
	}
}

// Open reads a local file into a Pending upload.
func Open(path string) (*Pending, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("upload: open %s: %w", path, err)
	}
	return FromBytes(path, data), nil
}

// Reader returns a fresh reader over the content.
func (p *Pending) Reader() io.Reader {
	return bytes.NewReader(p.data)
}

// Size reports the content length in bytes.
func (p *Pending) Size() int {
	return len(p.data)
}

// Preview returns the preview reference attached by a Previewer, or "".
func (p *Pending) Preview() string {
	return p.preview
}

// IsImage reports whether the content type is an image.
func (p *Pending) IsImage() bool {
	return len(p.ContentType) > 6 && p.ContentType[:6] == "image/"
}
