package cbor

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Diagnostic renders the item as RFC 8949 §8 diagnostic notation, with
// the RFC 8610 Appendix-G extensions `<<...>>` for embedded CBOR and
// `h'...'` for byte strings, honoring attached comments and any
// content-hint prefixes configured in opts (§6.3, §4.3).
func (it *Item) Diagnostic(opts *Options) string {
	var sb strings.Builder
	it.writeDiagnostic(&sb, opts)
	return sb.String()
}

func (it *Item) writeDiagnostic(sb *strings.Builder, opts *Options) {
	if it == nil {
		sb.WriteString("null")
		return
	}
	switch it.Kind {
	case KindUint:
		sb.WriteString(strconv.FormatUint(it.Uint, 10))
	case KindNegInt:
		sb.WriteString("-")
		sb.WriteString(strconv.FormatUint(it.Uint+1, 10))
	case KindBigInt:
		v, _ := it.numericValue()
		sb.WriteString(v.String())
	case KindBytes:
		writeBytesDiagnostic(sb, it, opts)
	case KindText:
		sb.WriteString(strconv.Quote(it.Text))
	case KindURIItem:
		sb.WriteString("32(")
		sb.WriteString(strconv.Quote(it.Text))
		sb.WriteString(")")
	case KindArray:
		sb.WriteString("[")
		for i, e := range it.Array {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.writeDiagnostic(sb, opts)
			if e.Comment != "" {
				fmt.Fprintf(sb, " / %s", e.Comment)
			}
		}
		sb.WriteString("]")
	case KindMap:
		sb.WriteString("{")
		for i, p := range it.Pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			p.Key.writeDiagnostic(sb, opts)
			if p.KeyComment != "" {
				fmt.Fprintf(sb, " / %s", p.KeyComment)
			}
			sb.WriteString(": ")
			p.Value.writeDiagnostic(sb, opts)
			if p.ValueComment != "" {
				fmt.Fprintf(sb, " / %s", p.ValueComment)
			}
		}
		sb.WriteString("}")
	case KindTag:
		if opts != nil {
			if prefixFn, ok := opts.DiagnosticPrefixes[it.Tag]; ok && it.Content.Kind == KindBytes {
				sb.WriteString(prefixFn(it.Content.Bytes))
				return
			}
		}
		fmt.Fprintf(sb, "%d(", it.Tag)
		it.Content.writeDiagnostic(sb, opts)
		sb.WriteString(")")
	case KindSimple:
		fmt.Fprintf(sb, "simple(%d)", it.Simple)
	case KindBool:
		if it.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindNull:
		sb.WriteString("null")
	case KindUndefined:
		sb.WriteString("undefined")
	case KindFloat:
		writeFloatDiagnostic(sb, it)
	default:
		sb.WriteString("<invalid>")
	}
}

func writeBytesDiagnostic(sb *strings.Builder, it *Item, opts *Options) {
	if len(it.Inner) == 1 {
		sb.WriteString("<<")
		it.Inner[0].writeDiagnostic(sb, opts)
		sb.WriteString(">>")
		return
	}
	sb.WriteString("h'")
	sb.WriteString(hex.EncodeToString(it.Bytes))
	sb.WriteString("'")
}

func writeFloatDiagnostic(sb *strings.Builder, it *Item) {
	if it.FloatBits == 32 {
		sb.WriteString(strconv.FormatFloat(it.Float, 'g', -1, 32))
		return
	}
	sb.WriteString(strconv.FormatFloat(it.Float, 'g', -1, 64))
}

// B64Prefix is the built-in RFC 8949 §3.4.5.2 `b64'...'` content-hint
// renderer; register it for a tag number with Options.DiagnosticPrefixes.
func B64Prefix(content []byte) string {
	return "b64'" + base64.StdEncoding.EncodeToString(content) + "'"
}
