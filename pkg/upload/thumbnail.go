package upload

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
)

const defaultThumbnailWidth = 320

// ThumbnailStore is a Previewer that renders image uploads into WebP
// thumbnails on disk. The reference is the thumbnail path; releasing it
// deletes the file. Non-image uploads get a path-less reference so callers
// can treat every upload the same way.
type ThumbnailStore struct {
	dir   string
	width int

	mu   sync.Mutex
	live map[string]bool
}

// ThumbnailOption configures a ThumbnailStore.
type ThumbnailOption func(*ThumbnailStore)

// WithThumbnailWidth sets the thumbnail width in pixels; height keeps the
// aspect ratio.
func WithThumbnailWidth(width int) ThumbnailOption {
	return func(s *ThumbnailStore) {
		if width > 0 {
			s.width = width
		}
	}
}

// NewThumbnailStore creates dir if needed and returns a store writing into it.
func NewThumbnailStore(dir string, options ...ThumbnailOption) (*ThumbnailStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: preview dir %s: %w", dir, err)
	}
	store := &ThumbnailStore{
		dir:   dir,
		width: defaultThumbnailWidth,
		live:  make(map[string]bool),
	}
	for _, opt := range options {
		opt(store)
	}
	return store, nil
}

func (s *ThumbnailStore) Acquire(p *Pending) (string, error) {
	id := ulid.Make().String()
	if !p.IsImage() {
		ref := "file:" + id
		s.track(ref, false)
		return ref, nil
	}

	img, err := imaging.Decode(bytes.NewReader(p.data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("upload: decode %s: %w", p.Filename, err)
	}
	resized := imaging.Resize(img, s.width, 0, imaging.Lanczos)

	path := filepath.Join(s.dir, id+".webp")
	if err := webp.Save(path, resized, &webp.Options{Quality: 80}); err != nil {
		return "", fmt.Errorf("upload: save thumbnail %s: %w", path, err)
	}
	s.track(path, true)
	return path, nil
}

func (s *ThumbnailStore) Release(ref string) error {
	s.mu.Lock()
	onDisk, ok := s.live[ref]
	delete(s.live, ref)
	s.mu.Unlock()

	if !ok {
		return ErrUnknownPreview
	}
	if !onDisk {
		return nil
	}
	if err := os.Remove(ref); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("upload: remove thumbnail %s: %w", ref, err)
	}
	return nil
}

// Live lists unreleased references, sorted.
func (s *ThumbnailStore) Live() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]string, 0, len(s.live))
	for ref := range s.live {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func (s *ThumbnailStore) track(ref string, onDisk bool) {
	s.mu.Lock()
	s.live[ref] = onDisk
	s.mu.Unlock()
}
