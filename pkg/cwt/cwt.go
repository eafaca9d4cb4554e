package cwt

import (
	"bytes"

	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
	"github.com/tradeverifyd/cbor-cose-go/pkg/cose"
)

// Tag is the CWT CBOR tag number (RFC 8392 §6).
const Tag = 61

func init() {
	cbor.RegisterDefaultProcessor(Tag, processor)
}

// CWT wraps an inner COSE message carrying a claims set (§3.5, §4.7). The
// wire form is `61(COSE_tagged_message)`; InnerTag records which of the six
// COSE tags was (or is assumed to have been, for the tolerant-decode case)
// present, so Encode can always re-emit the RFC-conformant doubly-tagged
// form even when the input omitted the inner tag.
type CWT struct {
	InnerTag uint64
	Message  *cbor.Item // the COSE message's array item, untagged
}

// NewCWT wraps an already-built COSE_Sign1 message as a CWT.
func NewCWT(msg *cose.Sign1Message) *CWT {
	arr := cbor.NewArray(
		cbor.NewBytes(msg.Protected.MarshalProtected()),
		msg.Unprotected.MarshalUnprotected(),
		payloadItem(msg.Payload),
		cbor.NewBytes(msg.Signature),
	)
	return &CWT{InnerTag: cose.TagSign1, Message: arr}
}

func payloadItem(b []byte) *cbor.Item {
	if b == nil {
		return cbor.NewNull()
	}
	return cbor.NewBytes(b)
}

// ToItem builds the doubly-tagged wire item: 61(tag(InnerTag, Message)).
func (c *CWT) ToItem() *cbor.Item {
	return cbor.NewTag(Tag, cbor.NewTag(c.InnerTag, c.Message))
}

// Encode returns the canonical, RFC-conformant encoding of c.
func (c *CWT) Encode() []byte { return c.ToItem().Encode() }

// Sign1 recovers the inner COSE_Sign1 message, the overwhelmingly common
// case for a CWT (§8.2.6 example).
func (c *CWT) Sign1() (*cose.Sign1Message, error) {
	if c.InnerTag != cose.TagSign1 {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	return cose.Sign1MessageFromItem(c.Message)
}

// ClaimsSet decodes the inner COSE message's payload as a CWT claims set.
func (c *CWT) ClaimsSet() (*ClaimsSet, error) {
	msg, err := c.Sign1()
	if err != nil {
		return nil, err
	}
	if msg.Payload == nil {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	item, err := cbor.NewDecoder(bytes.NewReader(msg.Payload)).Decode()
	if err != nil {
		return nil, err
	}
	return ClaimsSetFromItem(item)
}

// CWTFromItem recovers a CWT from a decoded tag-61 item (item.Content after
// cbor.Decode on the outer tag), the counterpart to Sign1MessageFromItem
// used for other tagged types.
func CWTFromItem(item *cbor.Item) (*CWT, error) {
	if item.Kind != cbor.KindTag {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	return &CWT{InnerTag: item.Tag, Message: item.Content}, nil
}

// processor implements the tag-61 contract of §4.7: content is ordinarily
// itself a tagged COSE message (RFC 8392's strict form), but ISO profiles
// sometimes omit that inner tag and present the bare COSE array directly;
// this processor tolerates both, defaulting the untagged form to
// COSE_Sign1 since that is the only message kind this module's CWT
// accessors (Sign1, ClaimsSet) operate on.
func processor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	var innerTag uint64
	var message *cbor.Item
	switch content.Kind {
	case cbor.KindTag:
		innerTag = content.Tag
		message = content.Content
		if _, err := validateCOSEShape(innerTag, message); err != nil {
			return nil, err
		}
	case cbor.KindArray:
		innerTag = cose.TagSign1
		message = content
		if _, err := cose.Sign1MessageFromItem(message); err != nil {
			return nil, err
		}
	default:
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	wrapped := cbor.NewTag(innerTag, message)
	return cbor.NewTag(Tag, wrapped), nil
}

func validateCOSEShape(tag uint64, content *cbor.Item) (bool, error) {
	switch tag {
	case cose.TagSign1:
		_, err := cose.Sign1MessageFromItem(content)
		return err == nil, err
	case cose.TagSign:
		_, err := cose.SignMessageFromItem(content)
		return err == nil, err
	case cose.TagMac0:
		_, err := cose.Mac0MessageFromItem(content)
		return err == nil, err
	case cose.TagMac:
		_, err := cose.MacMessageFromItem(content)
		return err == nil, err
	case cose.TagEncrypt0:
		_, err := cose.Encrypt0MessageFromItem(content)
		return err == nil, err
	case cose.TagEncrypt:
		_, err := cose.EncryptMessageFromItem(content)
		return err == nil, err
	default:
		return false, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
}
