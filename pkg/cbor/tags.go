package cbor

import (
	"math/big"
	"sync"
)

// Processor transforms a decoded tag's content item into a (possibly
// domain-specific) item. Returning an error aborts the decode with that
// error (§4.4).
type Processor func(tagNumber uint64, content *Item) (*Item, error)

// Registry is a tag-number -> Processor table. The zero Registry is empty
// and usable. Registries are copy-on-register (Clone then mutate the
// clone) so an in-flight Decoder's table is never mutated out from under
// it (§9 Design Notes).
type Registry struct {
	mu    sync.RWMutex
	procs map[uint64]Processor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[uint64]Processor)}
}

// Clone returns a deep-enough copy safe to mutate independently.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := NewRegistry()
	for k, v := range r.procs {
		out.procs[k] = v
	}
	return out
}

// Register adds or replaces the processor for tagNumber.
func (r *Registry) Register(tagNumber uint64, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[tagNumber] = p
}

// Unregister removes any processor for tagNumber, restoring default
// tag-wrapping behavior for it.
func (r *Registry) Unregister(tagNumber uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, tagNumber)
}

func (r *Registry) lookup(tagNumber uint64) (Processor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[tagNumber]
	return p, ok
}

// defaultRegistry is the process-wide singleton seeded with the bignum and
// embedded-CBOR processors. pkg/cose and pkg/cwt extend it from their own
// init() functions so pkg/cbor never imports them (that would cycle).
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide default tag-processor registry.
func DefaultRegistry() *Registry { return defaultRegistry }

// RegisterDefaultProcessor seeds the process-wide registry. Intended for
// use from package init() functions (e.g. pkg/cose, pkg/cwt); additional
// registrations at runtime are permitted but must be externally
// serialized relative to any concurrent decode using the default registry
// (§5 Concurrency).
func RegisterDefaultProcessor(tagNumber uint64, p Processor) {
	defaultRegistry.Register(tagNumber, p)
}

func init() {
	defaultRegistry.Register(2, positiveBignumProcessor)
	defaultRegistry.Register(3, negativeBignumProcessor)
	defaultRegistry.Register(24, embeddedCBORProcessor)
}

func positiveBignumProcessor(_ uint64, content *Item) (*Item, error) {
	if content.Kind != KindBytes {
		return nil, newErr(KindUnexpectedKind, -1, "tag 2 content must be a byte string")
	}
	v := new(big.Int).SetBytes(content.Bytes)
	return &Item{Kind: KindBigInt, Big: v, Bool: false}, nil
}

func negativeBignumProcessor(_ uint64, content *Item) (*Item, error) {
	if content.Kind != KindBytes {
		return nil, newErr(KindUnexpectedKind, -1, "tag 3 content must be a byte string")
	}
	v := new(big.Int).SetBytes(content.Bytes)
	return &Item{Kind: KindBigInt, Big: v, Bool: true}, nil
}

// embeddedCBORProcessor implements the tag-24 contract of §4.4: the byte
// string's content is opportunistically decoded and attached as a
// non-owning Inner annotation used only by diagnostic output; the item
// itself remains the byte string.
func embeddedCBORProcessor(_ uint64, content *Item) (*Item, error) {
	if content.Kind != KindBytes {
		return nil, newErr(KindUnexpectedKind, -1, "tag 24 content must be a byte string")
	}
	dec := NewDecoder(nil)
	inner, err := dec.DecodeBytes(content.Bytes)
	if err != nil {
		// Not parseable as CBOR: leave the byte string undecorated rather
		// than failing the whole decode; tag 24 is routinely used for
		// opaque non-CBOR blobs too.
		return content, nil
	}
	content.Inner = []*Item{inner}
	return content, nil
}

// KindURIItem marks an Item decoded via the optional tag-32 URI processor
// (not registered by default; see URIProcessor).
const KindURIItem ItemKind = KindText + 100

// URIProcessor is an opt-in tag-32 handler (RFC 8949 §3.4.3): it validates
// the content is a text string and marks it as a URI item. Register it
// explicitly (DefaultRegistry().Register(32, cbor.URIProcessor)) to get
// "decoded as a URI item" behavior; otherwise tag 32 decodes as an
// ordinary tagged string (§8.2 scenario 4).
func URIProcessor(_ uint64, content *Item) (*Item, error) {
	if content.Kind != KindText {
		return nil, newErr(KindUnexpectedKind, -1, "tag 32 content must be a text string")
	}
	return &Item{Kind: KindURIItem, Text: content.Text}, nil
}
