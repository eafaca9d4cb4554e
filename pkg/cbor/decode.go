package cbor

import (
	"bytes"
	"io"
)

// Decoder consumes a token stream and assembles a typed Item tree,
// dispatching recognized tag numbers to the configured registry (C2).
type Decoder struct {
	tok  *Tokenizer
	opts *Options
}

// NewDecoder creates a Decoder reading from r with default Options
// (process-wide registry, lenient canonical acceptance).
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{tok: NewTokenizer(r)}
}

// NewDecoderWithOptions creates a Decoder with explicit Options.
func NewDecoderWithOptions(r io.Reader, opts *Options) *Decoder {
	return &Decoder{tok: NewTokenizer(r), opts: opts}
}

// DecodeBytes decodes a single item from a byte slice with d's Options,
// ignoring any trailing bytes; it does not report how many bytes were
// consumed.
func (d *Decoder) DecodeBytes(b []byte) (*Item, error) {
	dd := &Decoder{tok: NewTokenizer(bytes.NewReader(b)), opts: d.opts}
	return dd.Decode()
}

// Decode reads one top-level item from the underlying stream.
func (d *Decoder) Decode() (*Item, error) {
	return d.decodeItem()
}

func isShortestArg(value uint64, info byte) bool {
	switch {
	case value < 24:
		return info == byte(value)
	case value <= 0xff:
		return info == 24
	case value <= 0xffff:
		return info == 25
	case value <= 0xffffffff:
		return info == 26
	default:
		return info == 27
	}
}

func (d *Decoder) strict() bool { return d.opts != nil && d.opts.StrictCanonical }

func (d *Decoder) decodeItem() (*Item, error) {
	tk, err := d.tok.Next()
	if err != nil {
		return nil, err
	}
	return d.fromToken(tk)
}

func (d *Decoder) fromToken(tk Token) (*Item, error) {
	switch tk.Type {
	case TokUint:
		if d.strict() && !isShortestArg(tk.Uint, tk.Info) {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "non-shortest integer encoding rejected under strict_canonical")
		}
		return NewUint(tk.Uint), nil
	case TokNegInt:
		if d.strict() && !isShortestArg(tk.Uint, tk.Info) {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "non-shortest integer encoding rejected under strict_canonical")
		}
		return NewNegInt(tk.Uint), nil
	case TokBytes:
		return NewBytes(tk.Bytes), nil
	case TokBytesIndefiniteOpen:
		if d.strict() {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "indefinite-length byte string rejected under strict_canonical")
		}
		return d.decodeIndefiniteBytes(tk.Offset)
	case TokText:
		return NewText(tk.Text), nil
	case TokTextIndefiniteOpen:
		if d.strict() {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "indefinite-length text string rejected under strict_canonical")
		}
		return d.decodeIndefiniteText(tk.Offset)
	case TokArrayOpen:
		return d.decodeArray(tk.Uint)
	case TokArrayIndefiniteOpen:
		if d.strict() {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "indefinite-length array rejected under strict_canonical")
		}
		return d.decodeIndefiniteArray()
	case TokMapOpen:
		return d.decodeMap(tk.Uint)
	case TokMapIndefiniteOpen:
		if d.strict() {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "indefinite-length map rejected under strict_canonical")
		}
		return d.decodeIndefiniteMap()
	case TokTag:
		return d.decodeTag(tk.Uint, tk.Offset)
	case TokSimple:
		return NewSimple(tk.Simple), nil
	case TokBool:
		return NewBool(tk.Bool), nil
	case TokNull:
		return NewNull(), nil
	case TokUndefined:
		return NewUndefined(), nil
	case TokFloat:
		return &Item{Kind: KindFloat, Float: tk.Float, FloatBits: tk.FloatBits}, nil
	case TokBreak:
		return nil, newErr(KindUnexpectedKind, tk.Offset, "unexpected break outside indefinite-length context")
	default:
		return nil, newErr(KindUnexpectedKind, tk.Offset, "unknown token type")
	}
}

func (d *Decoder) decodeArray(n uint64) (*Item, error) {
	items := make([]*Item, 0, n)
	for i := uint64(0); i < n; i++ {
		it, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return NewArray(items...), nil
}

func (d *Decoder) decodeIndefiniteArray() (*Item, error) {
	var items []*Item
	for {
		tk, err := d.tok.Next()
		if err != nil {
			return nil, err
		}
		if tk.Type == TokBreak {
			break
		}
		it, err := d.fromToken(tk)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return NewArray(items...), nil
}

func (d *Decoder) decodeMap(n uint64) (*Item, error) {
	pairs := make([]Pair, 0, n)
	for i := uint64(0); i < n; i++ {
		k, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		v, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	return NewMap(pairs...), nil
}

func (d *Decoder) decodeIndefiniteMap() (*Item, error) {
	var pairs []Pair
	for {
		tk, err := d.tok.Next()
		if err != nil {
			return nil, err
		}
		if tk.Type == TokBreak {
			break
		}
		k, err := d.fromToken(tk)
		if err != nil {
			return nil, err
		}
		v, err := d.decodeItem()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	return NewMap(pairs...), nil
}

func (d *Decoder) decodeIndefiniteBytes(offset int64) (*Item, error) {
	var all []byte
	for {
		tk, err := d.tok.Next()
		if err != nil {
			return nil, err
		}
		if tk.Type == TokBreak {
			break
		}
		if tk.Type != TokBytes {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "indefinite byte string chunk must be a definite byte string")
		}
		all = append(all, tk.Bytes...)
	}
	return NewBytes(all), nil
}

func (d *Decoder) decodeIndefiniteText(offset int64) (*Item, error) {
	var sb []byte
	for {
		tk, err := d.tok.Next()
		if err != nil {
			return nil, err
		}
		if tk.Type == TokBreak {
			break
		}
		if tk.Type != TokText {
			return nil, newErr(KindUnexpectedKind, tk.Offset, "indefinite text string chunk must be a definite text string")
		}
		sb = append(sb, []byte(tk.Text)...)
	}
	return NewText(string(sb)), nil
}

func (d *Decoder) decodeTag(tagNumber uint64, offset int64) (*Item, error) {
	content, err := d.decodeItem()
	if err != nil {
		return nil, err
	}
	registry := d.opts.registry()
	if proc, ok := registry.lookup(tagNumber); ok {
		out, err := proc(tagNumber, content)
		if err != nil {
			return nil, wrapErr(KindUnexpectedKind, offset, err, "tag %d processor failed", tagNumber)
		}
		return out, nil
	}
	return NewTag(tagNumber, content), nil
}
