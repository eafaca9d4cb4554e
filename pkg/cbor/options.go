package cbor

// DiagnosticPrefixFunc renders a byte string as diagnostic notation with a
// content-hint-specific prefix (RFC 8949 §3.4.5.2), e.g. `b64'...'`.
type DiagnosticPrefixFunc func(content []byte) string

// Options configures a Decoder. The zero value is valid and uses the
// process-wide DefaultRegistry with no strict-canonical enforcement.
type Options struct {
	// TagProcessors, if non-nil, overrides DefaultRegistry() for this
	// decoder only (§4.4, §5: "owned by its enclosing decoder").
	TagProcessors *Registry

	// DiagnosticPrefixes maps a content-hint tag number to a rendering
	// function for diagnostic notation (§6.3). The zero map means only
	// the built-in tag-24 `<<...>>` and default `h'...'` rendering apply.
	DiagnosticPrefixes map[uint64]DiagnosticPrefixFunc

	// StrictCanonical, when true, rejects non-shortest integer encodings
	// and indefinite-length items during decode (§6.4).
	StrictCanonical bool
}

func (o *Options) registry() *Registry {
	if o != nil && o.TagProcessors != nil {
		return o.TagProcessors
	}
	return defaultRegistry
}
