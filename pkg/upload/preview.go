package upload

import (
	"errors"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ErrUnknownPreview is returned when releasing a reference that is not live.
var ErrUnknownPreview = errors.New("upload: unknown preview reference")

// Previewer issues and revokes preview references for pending uploads.
type Previewer interface {
	// Acquire attaches a preview reference to p and returns it.
	Acquire(p *Pending) (string, error)
	// Release revokes a reference previously returned by Acquire.
	Release(ref string) error
}

// Attach acquires a preview for p through previewer. A nil previewer leaves p
// without a preview.
func Attach(previewer Previewer, p *Pending) error {
	if previewer == nil || p == nil || p.preview != "" {
		return nil
	}
	ref, err := previewer.Acquire(p)
	if err != nil {
		return err
	}
	p.preview = ref
	return nil
}

// Detach releases the preview of p, if any. It is safe to call repeatedly.
func Detach(previewer Previewer, p *Pending) error {
	if previewer == nil || p == nil || p.preview == "" {
		return nil
	}
	ref := p.preview
	p.preview = ""
	return previewer.Release(ref)
}

// Registry is an in-memory Previewer. References are opaque strings; it keeps
// the set of live ones so leaks are observable.
type Registry struct {
	mu   sync.Mutex
	live map[string]string
}

// NewRegistry returns an empty in-memory previewer.
func NewRegistry() *Registry {
	return &Registry{live: make(map[string]string)}
}

func (r *Registry) Acquire(p *Pending) (string, error) {
	ref := "preview:" + ulid.Make().String()
	r.mu.Lock()
	r.live[ref] = p.Filename
	r.mu.Unlock()
	return ref, nil
}

func (r *Registry) Release(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live[ref]; !ok {
		return ErrUnknownPreview
	}
	delete(r.live, ref)
	return nil
}

// Live lists the references that have not been released, sorted.
func (r *Registry) Live() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	refs := make([]string, 0, len(r.live))
	for ref := range r.live {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}
