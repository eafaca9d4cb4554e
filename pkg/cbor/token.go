package cbor

import (
	"bufio"
	"io"
	"math"
	"unicode/utf8"

	"github.com/x448/float16"
)

// TokenType identifies the kind of lexical token the tokenizer produced.
type TokenType uint8

const (
	TokUint TokenType = iota
	TokNegInt
	TokBytes
	TokBytesIndefiniteOpen
	TokText
	TokTextIndefiniteOpen
	TokArrayOpen
	TokArrayIndefiniteOpen
	TokMapOpen
	TokMapIndefiniteOpen
	TokTag
	TokSimple
	TokBool
	TokNull
	TokUndefined
	TokFloat
	TokBreak
)

// Token is one lexical unit emitted by the Tokenizer: a major type plus
// its decoded argument, or a structural marker (open/break).
type Token struct {
	Type TokenType

	Uint  uint64 // TokUint/TokNegInt value; TokArrayOpen/TokMapOpen count; TokTag number
	Bytes []byte // TokBytes payload
	Text  string // TokText payload

	Simple uint8
	Bool   bool

	Float     float64
	FloatBits uint8

	// Offset is the byte offset of the token's initial byte, for error
	// reporting by the decoder layer.
	Offset int64

	// Info is the raw additional-info nibble used to encode the argument,
	// consulted only when Options.StrictCanonical rejects non-shortest
	// encodings.
	Info byte
}

// Tokenizer reads CBOR bytes one token at a time (component C1).
type Tokenizer struct {
	r      *bufio.Reader
	offset int64
}

// NewTokenizer wraps an io.Reader for tokenization.
func NewTokenizer(r io.Reader) *Tokenizer {
	return &Tokenizer{r: bufio.NewReader(r)}
}

const maxLen = math.MaxInt32

// firstInvalidUTF8 returns the byte offset of the first ill-formed UTF-8
// sequence in b, or -1 if b is entirely well-formed.
func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func (t *Tokenizer) readByte() (byte, error) {
	b, err := t.r.ReadByte()
	if err != nil {
		return 0, wrapErr(KindInsufficientData, t.offset, err, "unexpected end of input")
	}
	t.offset++
	return b, nil
}

func (t *Tokenizer) readN(n uint64) ([]byte, error) {
	if n > maxLen {
		return nil, newErr(KindTooLong, t.offset, "declared length %d exceeds maximum", n)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	read, err := io.ReadFull(t.r, buf)
	t.offset += int64(read)
	if err != nil {
		return nil, wrapErr(KindInsufficientData, t.offset, err, "short read: wanted %d bytes, got %d", n, read)
	}
	return buf, nil
}

// readArg reads the additional-info argument for the given info nibble,
// per RFC 8949 §3: info in [0,23] is the value itself, {24,25,26,27} read
// 1/2/4/8 big-endian bytes.
func (t *Tokenizer) readArg(info byte) (uint64, error) {
	switch {
	case info <= 23:
		return uint64(info), nil
	case info == 24:
		b, err := t.readByte()
		return uint64(b), err
	case info == 25:
		b, err := t.readN(2)
		if err != nil {
			return 0, err
		}
		return uint64(b[0])<<8 | uint64(b[1]), nil
	case info == 26:
		b, err := t.readN(4)
		if err != nil {
			return 0, err
		}
		return uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3]), nil
	case info == 27:
		b, err := t.readN(8)
		if err != nil {
			return 0, err
		}
		var v uint64
		for _, c := range b {
			v = v<<8 | uint64(c)
		}
		return v, nil
	default:
		return 0, newErr(KindInvalidInfo, t.offset, "reserved additional-info %d", info)
	}
}

// Next reads and returns the next token from the stream.
func (t *Tokenizer) Next() (Token, error) {
	startOffset := t.offset
	b, err := t.readByte()
	if err != nil {
		return Token{}, err
	}
	major := b >> 5
	info := b & 0x1f

	if info == 31 {
		switch major {
		case 2:
			return Token{Type: TokBytesIndefiniteOpen, Offset: startOffset}, nil
		case 3:
			return Token{Type: TokTextIndefiniteOpen, Offset: startOffset}, nil
		case 4:
			return Token{Type: TokArrayIndefiniteOpen, Offset: startOffset}, nil
		case 5:
			return Token{Type: TokMapIndefiniteOpen, Offset: startOffset}, nil
		case 7:
			return Token{Type: TokBreak, Offset: startOffset}, nil
		default:
			return Token{}, newErr(KindInvalidInfo, startOffset, "indefinite-length marker illegal on major type %d", major)
		}
	}
	if info == 28 || info == 29 || info == 30 {
		return Token{}, newErr(KindInvalidInfo, startOffset, "reserved additional-info %d", info)
	}

	switch major {
	case 0:
		v, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokUint, Uint: v, Offset: startOffset, Info: info}, nil
	case 1:
		v, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokNegInt, Uint: v, Offset: startOffset, Info: info}, nil
	case 2:
		n, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		payload, err := t.readN(n)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokBytes, Bytes: payload, Offset: startOffset, Info: info}, nil
	case 3:
		n, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		payload, err := t.readN(n)
		if err != nil {
			return Token{}, err
		}
		if badAt := firstInvalidUTF8(payload); badAt >= 0 {
			return Token{}, newErr(KindMalformedUTF8, t.offset-int64(len(payload))+int64(badAt), "text string is not well-formed UTF-8")
		}
		return Token{Type: TokText, Text: string(payload), Offset: startOffset, Info: info}, nil
	case 4:
		n, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokArrayOpen, Uint: n, Offset: startOffset, Info: info}, nil
	case 5:
		n, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokMapOpen, Uint: n, Offset: startOffset, Info: info}, nil
	case 6:
		n, err := t.readArg(info)
		if err != nil {
			return Token{}, err
		}
		return Token{Type: TokTag, Uint: n, Offset: startOffset, Info: info}, nil
	case 7:
		return t.readSimpleOrFloat(info, startOffset)
	default:
		return Token{}, newErr(KindInvalidInfo, startOffset, "impossible major type %d", major)
	}
}

func (t *Tokenizer) readSimpleOrFloat(info byte, startOffset int64) (Token, error) {
	switch {
	case info <= 19:
		return Token{Type: TokSimple, Simple: info, Offset: startOffset}, nil
	case info == 20:
		return Token{Type: TokBool, Bool: false, Offset: startOffset}, nil
	case info == 21:
		return Token{Type: TokBool, Bool: true, Offset: startOffset}, nil
	case info == 22:
		return Token{Type: TokNull, Offset: startOffset}, nil
	case info == 23:
		return Token{Type: TokUndefined, Offset: startOffset}, nil
	case info == 24:
		b, err := t.readByte()
		if err != nil {
			return Token{}, err
		}
		if b < 32 {
			return Token{}, newErr(KindInvalidSimpleValue, startOffset, "simple value %d must not use two-byte encoding", b)
		}
		return Token{Type: TokSimple, Simple: b, Offset: startOffset}, nil
	case info == 25:
		raw, err := t.readN(2)
		if err != nil {
			return Token{}, err
		}
		bits := uint16(raw[0])<<8 | uint16(raw[1])
		f := float16.Frombits(bits).Float32()
		return Token{Type: TokFloat, Float: float64(f), FloatBits: 32, Offset: startOffset}, nil
	case info == 26:
		raw, err := t.readN(4)
		if err != nil {
			return Token{}, err
		}
		bits := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
		f := math.Float32frombits(bits)
		return Token{Type: TokFloat, Float: float64(f), FloatBits: 32, Offset: startOffset}, nil
	case info == 27:
		raw, err := t.readN(8)
		if err != nil {
			return Token{}, err
		}
		var bits uint64
		for _, c := range raw {
			bits = bits<<8 | uint64(c)
		}
		f := math.Float64frombits(bits)
		return Token{Type: TokFloat, Float: f, FloatBits: 64, Offset: startOffset}, nil
	default:
		return Token{}, newErr(KindInvalidInfo, startOffset, "reserved additional-info %d on major type 7", info)
	}
}
