package http

import (
	"bytes"
	"socket-client/application/util/rule"
	"strconv"

	"github.com/pkg/errors"
)

// [Major, Minor]
type Version [2]uint

var Version11 = Version{1, 1}

func (ver Version) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write([]byte("HTTP/"))
	buf.Write([]byte(strconv.FormatUint(uint64(ver[0]), 10)))
	buf.Write([]byte{'.'})
	buf.Write([]byte(strconv.FormatUint(uint64(ver[1]), 10)))
	return buf.Bytes()
}

func (ver Version) String() string { return string(ver.Text()) }

type Field struct{ Name, Value []byte }

func NewField(name, value string) Field {
	return Field{Name: []byte(name), Value: []byte(value)}
}

// ParseField parses a "Name: value" line. Surrounding whitespace of the value is dropped.
func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{rule.COL})
	if !found {
		return Field{}, errors.Errorf("colon seperator not found on header: %q", string(fieldLine))
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if !rule.IsValidToken(string(name)) {
		return Field{}, errors.Errorf("invalid field name: %q", string(name))
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	value = bytes.Trim(value, string(rule.OWS))
	if !rule.IsValidFieldValue(string(value)) {
		return Field{}, errors.Errorf("invalid field value for %q", string(name))
	}

	return Field{Name: bytes.Clone(name), Value: bytes.Clone(value)}, nil
}

func (f *Field) Text() []byte {
	buf := bytes.NewBuffer(nil)
	buf.Write(f.Name)
	buf.Write([]byte(": "))
	buf.Write(f.Value)
	return buf.Bytes()
}

func (f *Field) Is(name string) bool { return bytes.EqualFold(f.Name, []byte(name)) }

// Fields is an ordered header set. Order is kept on the wire and
// names compare case-insensitively.
type Fields []Field

func (fs Fields) Has(name string) bool {
	_, ok := fs.Get(name)
	return ok
}

// Get returns the value of the first field named name.
func (fs Fields) Get(name string) (value string, ok bool) {
	for _, f := range fs {
		if f.Is(name) {
			return string(f.Value), true
		}
	}
	return "", false
}

func (fs *Fields) Add(name, value string) { *fs = append(*fs, NewField(name, value)) }

// SetDefault adds the field unless one with the same name exists.
func (fs *Fields) SetDefault(name, value string) {
	if !fs.Has(name) {
		fs.Add(name, value)
	}
}

func (fs Fields) Clone() Fields {
	if fs == nil {
		return nil
	}
	clone := make(Fields, len(fs))
	for i, f := range fs {
		clone[i] = Field{Name: bytes.Clone(f.Name), Value: bytes.Clone(f.Value)}
	}
	return clone
}

// ParseFields parses every line with [ParseField], keeping the given order.
func ParseFields(lines []string) (Fields, error) {
	fields := make(Fields, 0, len(lines))
	for _, line := range lines {
		f, err := ParseField([]byte(line))
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}
