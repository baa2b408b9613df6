// Package keyspace derives collision-free storage keys from an entity kind and
// its identifier fields.
//
// A key is the kind prefix followed by each identifier part, separated by ':':
//
//	session:S-1
//	att:S-1:student-9
//	vote:E-3:3f9a...
//
// Build is injective because identifier parts may not contain ':' or '|', may
// not be empty, and must be NFC-normalized UTF-8. Parse is its inverse.
package keyspace

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/campusledger/internal/failure"
)

// Separator joins the prefix and identifier parts of a key.
const Separator byte = ':'

// MaxPartLen bounds a single identifier part in bytes.
const MaxPartLen = 128

// Kind is an entity namespace.
type Kind uint8

const (
	KindSession Kind = iota + 1
	KindAttendance
	KindCertificate
	KindElection
	KindVote
	KindCredential
	KindUsage
)

type kindInfo struct {
	prefix string
	name   string
	parts  int
}

var kinds = map[Kind]kindInfo{
	KindSession:     {prefix: "session", name: "session", parts: 1},
	KindAttendance:  {prefix: "att", name: "attendance", parts: 2},
	KindCertificate: {prefix: "cert", name: "certificate", parts: 1},
	KindElection:    {prefix: "election", name: "election", parts: 1},
	KindVote:        {prefix: "vote", name: "vote", parts: 2},
	KindCredential:  {prefix: "cred", name: "credential", parts: 1},
	KindUsage:       {prefix: "usage", name: "usage", parts: 1},
}

// All lists every kind in declaration order.
var All = []Kind{
	KindSession, KindAttendance, KindCertificate, KindElection,
	KindVote, KindCredential, KindUsage,
}

// String returns the kind's human name (e.g. "attendance").
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "unknown"
}

// Prefix returns the storage prefix without separator (e.g. "att").
func (k Kind) Prefix() string {
	return kinds[k].prefix
}

// Parts returns the number of identifier parts a key of this kind carries.
func (k Kind) Parts() int {
	return kinds[k].parts
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// ParseKind looks a kind up by human name or storage prefix.
func ParseKind(s string) (Kind, bool) {
	for _, k := range All {
		info := kinds[k]
		if s == info.name || s == info.prefix {
			return k, true
		}
	}
	return 0, false
}

// Build derives the storage key for kind and its identifier parts.
//
// Returns Format if the kind is unknown, the part count is wrong, or any part
// fails ValidatePart.
func Build(kind Kind, parts ...string) ([]byte, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, failure.Format("unknown kind %d", kind)
	}
	if len(parts) != info.parts {
		return nil, failure.Format("%s key needs %d identifier parts, got %d", info.name, info.parts, len(parts))
	}
	return build(info.prefix, parts, false)
}

// Prefix derives the range prefix covering every key of kind whose leading
// identifier parts equal parts. The result ends with the separator.
//
// Prefix(KindAttendance, "S-1") covers every attendance record of session S-1.
func Prefix(kind Kind, parts ...string) ([]byte, error) {
	info, ok := kinds[kind]
	if !ok {
		return nil, failure.Format("unknown kind %d", kind)
	}
	if len(parts) >= info.parts {
		return nil, failure.Format("%s prefix takes fewer than %d parts, got %d", info.name, info.parts, len(parts))
	}
	return build(info.prefix, parts, true)
}

func build(prefix string, parts []string, trailing bool) ([]byte, error) {
	size := len(prefix) + len(parts)
	for i, p := range parts {
		if err := ValidatePart(p); err != nil {
			return nil, wrapPart(err, i)
		}
		size += len(p)
	}
	if trailing {
		size++
	}

	key := make([]byte, 0, size)
	key = append(key, prefix...)
	for _, p := range parts {
		key = append(key, Separator)
		key = append(key, p...)
	}
	if trailing {
		key = append(key, Separator)
	}
	return key, nil
}

func wrapPart(err error, i int) error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		cp := *fe
		cp.Message = fmt.Sprintf("identifier part %d: %s", i, fe.Message)
		return &cp
	}
	return err
}

// ValidatePart checks a single identifier part.
func ValidatePart(p string) error {
	switch {
	case p == "":
		return failure.Format("identifier is empty")
	case len(p) > MaxPartLen:
		return failure.Format("identifier exceeds %d bytes", MaxPartLen)
	case !utf8.ValidString(p):
		return failure.Format("identifier is not valid UTF-8")
	case !norm.NFC.IsNormalString(p):
		return failure.Format("identifier is not NFC-normalized")
	}
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case Separator:
			return failure.Format("identifier contains %q", Separator)
		case '|':
			return failure.Format("identifier contains %q", '|')
		}
		if p[i] < 0x20 || p[i] == 0x7f {
			return failure.Format("identifier contains control byte 0x%02x", p[i])
		}
	}
	return nil
}

// Parse splits a storage key back into its kind and identifier parts.
func Parse(key []byte) (Kind, []string, error) {
	segs := bytes.Split(key, []byte{Separator})
	if len(segs) < 2 {
		return 0, nil, failure.Format("key %q has no identifier", key)
	}

	var kind Kind
	for _, k := range All {
		if string(segs[0]) == kinds[k].prefix {
			kind = k
			break
		}
	}
	if kind == 0 {
		return 0, nil, failure.Format("key %q has unknown prefix", key)
	}

	parts := make([]string, 0, len(segs)-1)
	for _, s := range segs[1:] {
		parts = append(parts, string(s))
	}
	if len(parts) != kind.Parts() {
		return 0, nil, failure.Format("key %q has %d identifier parts, %s takes %d", key, len(parts), kind, kind.Parts())
	}
	for i, p := range parts {
		if err := ValidatePart(p); err != nil {
			return 0, nil, wrapPart(err, i)
		}
	}
	return kind, parts, nil
}
