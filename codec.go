package xrpl

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

// Type codes of the canonical binary format.
type TypeCode uint8

const (
	TypeUInt16    TypeCode = 1
	TypeUInt32    TypeCode = 2
	TypeHash256   TypeCode = 5
	TypeAmount    TypeCode = 6
	TypeBlob      TypeCode = 7
	TypeAccountID TypeCode = 8
)

// Field identifies a serialized field by type and field code. Fields are
// written in ascending (type, code) order.
type Field struct {
	Name    string
	Type    TypeCode
	Code    uint8
	Signing bool
}

var (
	FieldTransactionType    = Field{Name: "TransactionType", Type: TypeUInt16, Code: 2, Signing: true}
	FieldNetworkID          = Field{Name: "NetworkID", Type: TypeUInt32, Code: 1, Signing: true}
	FieldFlags              = Field{Name: "Flags", Type: TypeUInt32, Code: 2, Signing: true}
	FieldSourceTag          = Field{Name: "SourceTag", Type: TypeUInt32, Code: 3, Signing: true}
	FieldSequence           = Field{Name: "Sequence", Type: TypeUInt32, Code: 4, Signing: true}
	FieldDestinationTag     = Field{Name: "DestinationTag", Type: TypeUInt32, Code: 14, Signing: true}
	FieldLastLedgerSequence = Field{Name: "LastLedgerSequence", Type: TypeUInt32, Code: 27, Signing: true}
	FieldAmount             = Field{Name: "Amount", Type: TypeAmount, Code: 1, Signing: true}
	FieldFee                = Field{Name: "Fee", Type: TypeAmount, Code: 8, Signing: true}
	FieldSigningPubKey      = Field{Name: "SigningPubKey", Type: TypeBlob, Code: 3, Signing: true}
	FieldTxnSignature       = Field{Name: "TxnSignature", Type: TypeBlob, Code: 4, Signing: false}
	FieldAccount            = Field{Name: "Account", Type: TypeAccountID, Code: 1, Signing: true}
	FieldDestination        = Field{Name: "Destination", Type: TypeAccountID, Code: 3, Signing: true}
)

func (f Field) Header() []byte {
	typ, code := byte(f.Type), f.Code
	switch {
	case typ < 16 && code < 16:
		return []byte{typ<<4 | code}
	case typ < 16:
		return []byte{typ << 4, code}
	case code < 16:
		return []byte{code, typ}
	default:
		return []byte{0, typ, code}
	}
}

func (f Field) less(other Field) bool {
	if f.Type != other.Type {
		return f.Type < other.Type
	}
	return f.Code < other.Code
}

// Hash prefixes.
var (
	HashPrefixTransactionSign = []byte{'S', 'T', 'X', 0x00}
	HashPrefixTransactionID   = []byte{'T', 'X', 'N', 0x00}
)

type fieldValue struct {
	field Field
	value []byte
}

// Serializer collects field values and writes them in canonical order.
type Serializer struct {
	fields []fieldValue
}

func (s *Serializer) put(field Field, value []byte) {
	for i, fv := range s.fields {
		if fv.field == field {
			s.fields[i].value = value
			return
		}
	}
	s.fields = append(s.fields, fieldValue{field, value})
}

func (s *Serializer) PutUInt16(field Field, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	s.put(field, b)
}

func (s *Serializer) PutUInt32(field Field, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	s.put(field, b)
}

// PutDrops writes a native XRP amount.
func (s *Serializer) PutDrops(field Field, drops uint64) error {
	if drops > MaxDrops {
		return errors.Errorf("%s: %d drops exceeds the maximum", field.Name, drops)
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, drops|0x4000000000000000)
	s.put(field, b)
	return nil
}

func (s *Serializer) PutBlob(field Field, blob []byte) error {
	prefix, err := encodeLength(len(blob))
	if err != nil {
		return errors.Wrapf(err, "%s", field.Name)
	}
	s.put(field, append(prefix, blob...))
	return nil
}

func (s *Serializer) PutAccountID(field Field, id AccountID) {
	s.put(field, append([]byte{AccountIDSize}, id[:]...))
}

// Bytes serializes every field. When signing is true, fields excluded from the
// signing payload are skipped.
func (s *Serializer) Bytes(signing bool) []byte {
	fields := make([]fieldValue, 0, len(s.fields))
	for _, fv := range s.fields {
		if signing && !fv.field.Signing {
			continue
		}
		fields = append(fields, fv)
	}

	sort.Slice(fields, func(i, j int) bool {
		return fields[i].field.less(fields[j].field)
	})

	buf := &bytes.Buffer{}
	for _, fv := range fields {
		buf.Write(fv.field.Header())
		buf.Write(fv.value)
	}

	return buf.Bytes()
}

// encodeLength writes the variable length prefix used by blobs and account
// ids.
func encodeLength(n int) ([]byte, error) {
	switch {
	case n <= 192:
		return []byte{byte(n)}, nil
	case n <= 12480:
		n -= 193
		return []byte{byte(193 + n>>8), byte(n & 0xff)}, nil
	case n <= 918744:
		n -= 12481
		return []byte{byte(241 + n>>16), byte(n >> 8 & 0xff), byte(n & 0xff)}, nil
	}
	return nil, errors.Errorf("length %d too large to encode", n)
}

// TransactionHash computes the id of a signed transaction blob.
func TransactionHash(signedBlob []byte) string {
	digest := sha512Half(append(append([]byte{}, HashPrefixTransactionID...), signedBlob...))
	return hexUpper(digest[:])
}

var knownFields = []Field{
	FieldTransactionType,
	FieldNetworkID,
	FieldFlags,
	FieldSourceTag,
	FieldSequence,
	FieldDestinationTag,
	FieldLastLedgerSequence,
	FieldAmount,
	FieldFee,
	FieldSigningPubKey,
	FieldTxnSignature,
	FieldAccount,
	FieldDestination,
}

func lookupField(typ TypeCode, code uint8) (Field, bool) {
	for _, f := range knownFields {
		if f.Type == typ && f.Code == code {
			return f, true
		}
	}
	return Field{}, false
}

// Deserializer reads the fields of a serialized object in order.
type Deserializer struct {
	data []byte
	pos  int
}

func NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{data: data}
}

func (d *Deserializer) Done() bool {
	return d.pos >= len(d.data)
}

func (d *Deserializer) take(n int) (b []byte, err error) {
	if n < 0 || d.pos+n > len(d.data) {
		err = errors.Errorf("unexpected end of data at offset %d (want %d bytes)", d.pos, n)
		return
	}
	b = d.data[d.pos : d.pos+n]
	d.pos += n
	return
}

func (d *Deserializer) readHeader() (typ TypeCode, code uint8, err error) {
	b, err := d.take(1)
	if err != nil {
		return
	}

	typ, code = TypeCode(b[0]>>4), b[0]&0x0f

	if typ == 0 {
		if b, err = d.take(1); err != nil {
			return
		}
		typ = TypeCode(b[0])
	}

	if code == 0 {
		if b, err = d.take(1); err != nil {
			return
		}
		code = b[0]
	}

	return
}

func (d *Deserializer) readLength() (n int, err error) {
	b, err := d.take(1)
	if err != nil {
		return
	}

	b1 := int(b[0])
	switch {
	case b1 <= 192:
		return b1, nil
	case b1 <= 240:
		if b, err = d.take(1); err != nil {
			return
		}
		return 193 + (b1-193)*256 + int(b[0]), nil
	case b1 <= 254:
		if b, err = d.take(2); err != nil {
			return
		}
		return 12481 + (b1-241)*65536 + int(b[0])*256 + int(b[1]), nil
	}

	return 0, errors.Errorf("invalid length prefix %d", b1)
}

// Next reads one field and its raw value. Variable length values are
// returned without their length prefix.
func (d *Deserializer) Next() (field Field, value []byte, err error) {
	typ, code, err := d.readHeader()
	if err != nil {
		return
	}

	field, ok := lookupField(typ, code)
	if !ok {
		err = errors.Errorf("unsupported field (type %d, code %d)", typ, code)
		return
	}

	switch field.Type {
	case TypeUInt16:
		value, err = d.take(2)
	case TypeUInt32:
		value, err = d.take(4)
	case TypeAmount:
		if value, err = d.take(8); err == nil && value[0]&0x80 != 0 {
			err = errors.Errorf("%s: issued currency amounts are not supported", field.Name)
		}
	case TypeBlob, TypeAccountID:
		var n int
		if n, err = d.readLength(); err == nil {
			value, err = d.take(n)
		}
	default:
		err = errors.Errorf("%s: unsupported type %d", field.Name, field.Type)
	}

	return
}
