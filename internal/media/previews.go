package media

import (
	"sync"
)

// PreviewPath prefixes transient media references.
const PreviewPath = "/preview/"

// Stored describes the bytes behind a transient reference.
type Stored struct {
	Path        string
	Name        string
	ContentType string
}

// Previews holds transient playable references. A reference stays valid
// until it is revoked; it never expires on its own.
type Previews struct {
	mu   sync.RWMutex
	refs map[string]Stored
}

func NewPreviews() *Previews {
	return &Previews{refs: make(map[string]Stored)}
}

// Register makes id resolvable and returns its reference URL.
func (p *Previews) Register(id string, s Stored) string {
	p.mu.Lock()
	p.refs[id] = s
	p.mu.Unlock()
	return PreviewPath + id
}

func (p *Previews) Lookup(id string) (Stored, error) {
	p.mu.RLock()
	s, ok := p.refs[id]
	p.mu.RUnlock()
	if !ok {
		return Stored{}, ErrPreviewRevoked
	}
	return s, nil
}

func (p *Previews) Revoke(id string) {
	p.mu.Lock()
	delete(p.refs, id)
	p.mu.Unlock()
}

// Len reports the number of live references.
func (p *Previews) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.refs)
}
