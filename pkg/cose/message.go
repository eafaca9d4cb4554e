package cose

import (
	"github.com/tradeverifyd/cbor-cose-go/pkg/cbor"
)

// CBOR tag numbers for the six COSE message kinds (§3.3).
const (
	TagEncrypt0 = 16
	TagMac0     = 17
	TagSign1    = 18
	TagEncrypt  = 96
	TagMac      = 97
	TagSign     = 98
)

func init() {
	cbor.RegisterDefaultProcessor(TagSign1, sign1Processor)
	cbor.RegisterDefaultProcessor(TagSign, signProcessor)
	cbor.RegisterDefaultProcessor(TagMac0, mac0Processor)
	cbor.RegisterDefaultProcessor(TagMac, macProcessor)
	cbor.RegisterDefaultProcessor(TagEncrypt0, encrypt0Processor)
	cbor.RegisterDefaultProcessor(TagEncrypt, encryptProcessor)
}

// messageArray validates and unpacks the common [protected, unprotected,
// payload, trailing...] shape every COSE message kind shares (§3.3, §4.5
// "build() from CBOR").
func messageArray(content *cbor.Item, arity int) (protectedBytes []byte, unprotected *cbor.Item, payload *cbor.Item, trailing []*cbor.Item, err error) {
	if content.Kind != cbor.KindArray || len(content.Array) != arity {
		return nil, nil, nil, nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protectedItem := content.Array[0]
	if protectedItem.Kind != cbor.KindBytes {
		return nil, nil, nil, nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	unprotectedItem := content.Array[1]
	if unprotectedItem.Kind != cbor.KindMap {
		return nil, nil, nil, nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	payloadItem := content.Array[2]
	if payloadItem.Kind != cbor.KindBytes && payloadItem.Kind != cbor.KindNull {
		return nil, nil, nil, nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	return protectedItem.Bytes, unprotectedItem, payloadItem, content.Array[3:], nil
}

func buildHeaders(protectedBytes []byte, unprotectedItem *cbor.Item) (protected, unprotected *Header, err error) {
	protected, _, err = ParseProtectedHeader(protectedBytes)
	if err != nil {
		return nil, nil, err
	}
	unprotected, err = ParseUnprotectedHeader(unprotectedItem)
	if err != nil {
		return nil, nil, err
	}
	return protected, unprotected, nil
}

func payloadBytes(item *cbor.Item) []byte {
	if item.Kind == cbor.KindNull {
		return nil
	}
	return item.Bytes
}

// sigStructure builds the canonical Sig_structure encoding per §4.5:
// [context, body_protected, ? sign_protected, external_aad, payload].
func sigStructure(context string, bodyProtected []byte, signProtected []byte, externalAAD []byte, payload []byte) []byte {
	elems := []*cbor.Item{
		cbor.NewText(context),
		cbor.NewBytes(bodyProtected),
	}
	if signProtected != nil {
		elems = append(elems, cbor.NewBytes(signProtected))
	}
	elems = append(elems, cbor.NewBytes(externalAAD), cbor.NewBytes(payload))
	return cbor.NewArray(elems...).Encode()
}

// Sign1Message is a COSE_Sign1 (§3.3, §4.5).
type Sign1Message struct {
	Protected   *Header
	Unprotected *Header
	Payload     []byte
	Signature   []byte
}

// NewSign1Message builds an unsigned COSE_Sign1 shell.
func NewSign1Message(protected, unprotected *Header, payload []byte) *Sign1Message {
	if protected == nil {
		protected = NewHeader()
	}
	if unprotected == nil {
		unprotected = NewHeader()
	}
	return &Sign1Message{Protected: protected, Unprotected: unprotected, Payload: payload}
}

// Sign computes and stores the signature over m using key/alg, with an
// optional external_aad (§4.6).
func (m *Sign1Message) Sign(key *Key, alg Algorithm, externalAAD []byte) error {
	structure := sigStructure("Signature1", m.Protected.MarshalProtected(), nil, externalAAD, m.Payload)
	sig, err := sign(key, alg, structure)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// Verify checks m's signature using getter to resolve the verification key,
// as described in §4.6: alg and kid are read from the protected header,
// falling back to the unprotected header.
func (m *Sign1Message) Verify(getter KeyGetter, externalAAD []byte) error {
	algID, ok := m.Protected.AlgID()
	if !ok {
		algID, ok = m.Unprotected.AlgID()
	}
	if !ok {
		return cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
	}
	alg, ok := AlgorithmByID(algID)
	if !ok {
		return cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
	}
	kid := m.Protected.Kid
	if kid == nil {
		kid = m.Unprotected.Kid
	}
	key, err := getter.Key(kid, KeyOpVerify)
	if err != nil {
		return err
	}
	structure := sigStructure("Signature1", m.Protected.MarshalProtected(), nil, externalAAD, m.Payload)
	return verify(key, alg, structure, m.Signature)
}

// VerifyWithKey checks m's signature against a directly supplied key,
// bypassing KeyGetter lookup (§4.6, "or use the directly supplied key").
func (m *Sign1Message) VerifyWithKey(key *Key, externalAAD []byte) error {
	algID, ok := m.Protected.AlgID()
	if !ok {
		algID, ok = m.Unprotected.AlgID()
	}
	if !ok {
		return cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
	}
	alg, ok := AlgorithmByID(algID)
	if !ok {
		return cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
	}
	structure := sigStructure("Signature1", m.Protected.MarshalProtected(), nil, externalAAD, m.Payload)
	return verify(key, alg, structure, m.Signature)
}

// ToItem builds the wire array item, tagged 18 (§3.3).
func (m *Sign1Message) ToItem() *cbor.Item {
	arr := cbor.NewArray(
		cbor.NewBytes(m.Protected.MarshalProtected()),
		m.Unprotected.MarshalUnprotected(),
		payloadItemFor(m.Payload),
		cbor.NewBytes(m.Signature),
	)
	return cbor.NewTag(TagSign1, arr)
}

// Encode returns the canonical tagged CBOR encoding of m.
func (m *Sign1Message) Encode() []byte { return m.ToItem().Encode() }

func payloadItemFor(payload []byte) *cbor.Item {
	if payload == nil {
		return cbor.NewNull()
	}
	return cbor.NewBytes(payload)
}

// sign1Processor validates that content has COSE_Sign1's shape before
// handing back the default tag wrapper (§4.4: "a handler that fails
// validation signals DecoderError"); pkg/cbor's Item has no slot for a
// domain-specific payload, so callers recover the typed message with
// Sign1MessageFromItem(item.Content).
func sign1Processor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	if _, err := Sign1MessageFromItem(content); err != nil {
		return nil, err
	}
	return cbor.NewTag(TagSign1, content), nil
}

// Sign1MessageFromItem builds a Sign1Message from an already-decoded array
// item (§4.5 "build() from CBOR").
func Sign1MessageFromItem(content *cbor.Item) (*Sign1Message, error) {
	protectedBytes, unprotectedItem, payloadItem, trailing, err := messageArray(content, 4)
	if err != nil {
		return nil, err
	}
	if len(trailing) != 1 || trailing[0].Kind != cbor.KindBytes {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protected, unprotected, err := buildHeaders(protectedBytes, unprotectedItem)
	if err != nil {
		return nil, err
	}
	return &Sign1Message{
		Protected:   protected,
		Unprotected: unprotected,
		Payload:     payloadBytes(payloadItem),
		Signature:   trailing[0].Bytes,
	}, nil
}

// Signature is one entry of a COSE_Signature array within a COSE_Sign
// message (§3.3): it carries its own protected/unprotected headers and
// signature bytes, verified against the message's body headers.
type Signature struct {
	Protected   *Header
	Unprotected *Header
	Signature   []byte
}

// SignMessage is a COSE_Sign (multi-signer, §3.3).
type SignMessage struct {
	Protected   *Header
	Unprotected *Header
	Payload     []byte
	Signatures  []*Signature
}

// NewSignMessage builds an unsigned COSE_Sign shell.
func NewSignMessage(protected, unprotected *Header, payload []byte) *SignMessage {
	if protected == nil {
		protected = NewHeader()
	}
	if unprotected == nil {
		unprotected = NewHeader()
	}
	return &SignMessage{Protected: protected, Unprotected: unprotected, Payload: payload}
}

// AddSignature signs m's body with one more signer's key and appends the
// resulting COSE_Signature.
func (m *SignMessage) AddSignature(signerProtected, signerUnprotected *Header, key *Key, alg Algorithm, externalAAD []byte) error {
	if signerProtected == nil {
		signerProtected = NewHeader()
	}
	if signerUnprotected == nil {
		signerUnprotected = NewHeader()
	}
	structure := sigStructure("Signature", m.Protected.MarshalProtected(), signerProtected.MarshalProtected(), externalAAD, m.Payload)
	sig, err := sign(key, alg, structure)
	if err != nil {
		return err
	}
	m.Signatures = append(m.Signatures, &Signature{Protected: signerProtected, Unprotected: signerUnprotected, Signature: sig})
	return nil
}

// Verify requires every COSE_Signature entry to verify (§4.6: "all must
// verify", not "any one verifies").
func (m *SignMessage) Verify(getter KeyGetter, externalAAD []byte) error {
	if len(m.Signatures) == 0 {
		return cbor.ErrKind(cbor.KindSignatureInvalid)
	}
	for _, s := range m.Signatures {
		algID, ok := s.Protected.AlgID()
		if !ok {
			algID, ok = s.Unprotected.AlgID()
		}
		if !ok {
			algID, ok = m.Protected.AlgID()
		}
		if !ok {
			return cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
		}
		alg, ok := AlgorithmByID(algID)
		if !ok {
			return cbor.ErrKind(cbor.KindUnsupportedAlgorithm)
		}
		kid := s.Protected.Kid
		if kid == nil {
			kid = s.Unprotected.Kid
		}
		if kid == nil {
			kid = m.Unprotected.Kid
		}
		key, err := getter.Key(kid, KeyOpVerify)
		if err != nil {
			return err
		}
		structure := sigStructure("Signature", m.Protected.MarshalProtected(), s.Protected.MarshalProtected(), externalAAD, m.Payload)
		if err := verify(key, alg, structure, s.Signature); err != nil {
			return err
		}
	}
	return nil
}

// ToItem builds the wire array item, tagged 98 (§3.3).
func (m *SignMessage) ToItem() *cbor.Item {
	sigs := make([]*cbor.Item, len(m.Signatures))
	for i, s := range m.Signatures {
		sigs[i] = cbor.NewArray(
			cbor.NewBytes(s.Protected.MarshalProtected()),
			s.Unprotected.MarshalUnprotected(),
			cbor.NewBytes(s.Signature),
		)
	}
	arr := cbor.NewArray(
		cbor.NewBytes(m.Protected.MarshalProtected()),
		m.Unprotected.MarshalUnprotected(),
		payloadItemFor(m.Payload),
		cbor.NewArray(sigs...),
	)
	return cbor.NewTag(TagSign, arr)
}

// Encode returns the canonical tagged CBOR encoding of m.
func (m *SignMessage) Encode() []byte { return m.ToItem().Encode() }

func signProcessor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	if _, err := SignMessageFromItem(content); err != nil {
		return nil, err
	}
	return cbor.NewTag(TagSign, content), nil
}

// SignMessageFromItem builds a SignMessage from an already-decoded array
// item (§4.5 "build() from CBOR").
func SignMessageFromItem(content *cbor.Item) (*SignMessage, error) {
	protectedBytes, unprotectedItem, payloadItem, trailing, err := messageArray(content, 4)
	if err != nil {
		return nil, err
	}
	if len(trailing) != 1 || trailing[0].Kind != cbor.KindArray {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protected, unprotected, err := buildHeaders(protectedBytes, unprotectedItem)
	if err != nil {
		return nil, err
	}
	sigs := make([]*Signature, len(trailing[0].Array))
	for i, sigItem := range trailing[0].Array {
		if sigItem.Kind != cbor.KindArray || len(sigItem.Array) != 3 {
			return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
		}
		if sigItem.Array[0].Kind != cbor.KindBytes || sigItem.Array[1].Kind != cbor.KindMap || sigItem.Array[2].Kind != cbor.KindBytes {
			return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
		}
		sp, su, err := buildHeaders(sigItem.Array[0].Bytes, sigItem.Array[1])
		if err != nil {
			return nil, err
		}
		sigs[i] = &Signature{Protected: sp, Unprotected: su, Signature: sigItem.Array[2].Bytes}
	}
	return &SignMessage{
		Protected:   protected,
		Unprotected: unprotected,
		Payload:     payloadBytes(payloadItem),
		Signatures:  sigs,
	}, nil
}

// Mac0Message, MacMessage, Encrypt0Message and EncryptMessage model the
// remaining COSE message kinds structurally only (§3.4, Non-goals: "only
// EC2 ECDSA signing is required to be functional"). They validate arity
// and field kinds and round-trip to/from CBOR, but expose no MAC or AEAD
// operation.
type Mac0Message struct {
	Protected   *Header
	Unprotected *Header
	Payload     []byte
	Tag         []byte
}

func (m *Mac0Message) ToItem() *cbor.Item {
	return cbor.NewTag(TagMac0, cbor.NewArray(
		cbor.NewBytes(m.Protected.MarshalProtected()),
		m.Unprotected.MarshalUnprotected(),
		payloadItemFor(m.Payload),
		cbor.NewBytes(m.Tag),
	))
}

func Mac0MessageFromItem(content *cbor.Item) (*Mac0Message, error) {
	protectedBytes, unprotectedItem, payloadItem, trailing, err := messageArray(content, 4)
	if err != nil {
		return nil, err
	}
	if len(trailing) != 1 || trailing[0].Kind != cbor.KindBytes {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protected, unprotected, err := buildHeaders(protectedBytes, unprotectedItem)
	if err != nil {
		return nil, err
	}
	return &Mac0Message{Protected: protected, Unprotected: unprotected, Payload: payloadBytes(payloadItem), Tag: trailing[0].Bytes}, nil
}

func mac0Processor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	if _, err := Mac0MessageFromItem(content); err != nil {
		return nil, err
	}
	return cbor.NewTag(TagMac0, content), nil
}

type MacMessage struct {
	Protected   *Header
	Unprotected *Header
	Payload     []byte
	Tag         []byte
	Recipients  []*cbor.Item
}

func (m *MacMessage) ToItem() *cbor.Item {
	return cbor.NewTag(TagMac, cbor.NewArray(
		cbor.NewBytes(m.Protected.MarshalProtected()),
		m.Unprotected.MarshalUnprotected(),
		payloadItemFor(m.Payload),
		cbor.NewBytes(m.Tag),
		cbor.NewArray(m.Recipients...),
	))
}

func MacMessageFromItem(content *cbor.Item) (*MacMessage, error) {
	protectedBytes, unprotectedItem, payloadItem, trailing, err := messageArray(content, 5)
	if err != nil {
		return nil, err
	}
	if len(trailing) != 2 || trailing[0].Kind != cbor.KindBytes || trailing[1].Kind != cbor.KindArray {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protected, unprotected, err := buildHeaders(protectedBytes, unprotectedItem)
	if err != nil {
		return nil, err
	}
	return &MacMessage{Protected: protected, Unprotected: unprotected, Payload: payloadBytes(payloadItem), Tag: trailing[0].Bytes, Recipients: trailing[1].Array}, nil
}

func macProcessor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	if _, err := MacMessageFromItem(content); err != nil {
		return nil, err
	}
	return cbor.NewTag(TagMac, content), nil
}

type Encrypt0Message struct {
	Protected   *Header
	Unprotected *Header
	Ciphertext  []byte
}

func (m *Encrypt0Message) ToItem() *cbor.Item {
	return cbor.NewTag(TagEncrypt0, cbor.NewArray(
		cbor.NewBytes(m.Protected.MarshalProtected()),
		m.Unprotected.MarshalUnprotected(),
		payloadItemFor(m.Ciphertext),
	))
}

func Encrypt0MessageFromItem(content *cbor.Item) (*Encrypt0Message, error) {
	protectedBytes, unprotectedItem, payloadItem, trailing, err := messageArray(content, 3)
	if err != nil {
		return nil, err
	}
	if len(trailing) != 0 {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protected, unprotected, err := buildHeaders(protectedBytes, unprotectedItem)
	if err != nil {
		return nil, err
	}
	return &Encrypt0Message{Protected: protected, Unprotected: unprotected, Ciphertext: payloadBytes(payloadItem)}, nil
}

func encrypt0Processor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	if _, err := Encrypt0MessageFromItem(content); err != nil {
		return nil, err
	}
	return cbor.NewTag(TagEncrypt0, content), nil
}

type EncryptMessage struct {
	Protected   *Header
	Unprotected *Header
	Ciphertext  []byte
	Recipients  []*cbor.Item
}

func (m *EncryptMessage) ToItem() *cbor.Item {
	return cbor.NewTag(TagEncrypt, cbor.NewArray(
		cbor.NewBytes(m.Protected.MarshalProtected()),
		m.Unprotected.MarshalUnprotected(),
		payloadItemFor(m.Ciphertext),
		cbor.NewArray(m.Recipients...),
	))
}

func EncryptMessageFromItem(content *cbor.Item) (*EncryptMessage, error) {
	protectedBytes, unprotectedItem, payloadItem, trailing, err := messageArray(content, 4)
	if err != nil {
		return nil, err
	}
	if len(trailing) != 1 || trailing[0].Kind != cbor.KindArray {
		return nil, cbor.ErrKind(cbor.KindUnexpectedKind)
	}
	protected, unprotected, err := buildHeaders(protectedBytes, unprotectedItem)
	if err != nil {
		return nil, err
	}
	return &EncryptMessage{Protected: protected, Unprotected: unprotected, Ciphertext: payloadBytes(payloadItem), Recipients: trailing[0].Array}, nil
}

func encryptProcessor(_ uint64, content *cbor.Item) (*cbor.Item, error) {
	if _, err := EncryptMessageFromItem(content); err != nil {
		return nil, err
	}
	return cbor.NewTag(TagEncrypt, content), nil
}
