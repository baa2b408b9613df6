package codec

import (
	"encoding/hex"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/campusledger/internal/failure"
)

var sessionShape = Shape{Bytes, Bytes, Uint64, Bytes}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		shape  Shape
		fields [][]byte
	}{
		{"session", sessionShape, [][]byte{[]byte("CS101"), []byte("R-12"), PutUint64(1700000000), []byte("active")}},
		{"vote", Shape{Bytes, Uint64}, [][]byte{[]byte("cand-1"), PutUint64(42)}},
		{"numeric containing delimiter", Shape{Uint64, Bytes}, [][]byte{PutUint64(0x7c7c7c7c7c7c7c7c), []byte("x")}},
		{"empty byte fields", Text(3), [][]byte{{}, []byte("mid"), {}}},
		{"single field", Text(1), [][]byte{[]byte("ended")}},
		{"numeric last", Shape{Bytes, Bytes, Uint64}, [][]byte{[]byte("h"), []byte("present"), PutUint64(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := tt.shape.Encode(tt.fields)
			require.NoError(t, err)

			got, err := tt.shape.Decode(buf)
			require.NoError(t, err)
			require.Len(t, got, len(tt.fields))
			for i := range tt.fields {
				assert.Equal(t, string(tt.fields[i]), string(got[i]), "field %d", i)
			}
		})
	}
}

func TestEncodeLayoutGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	session, err := sessionShape.Encode([][]byte{
		[]byte("CS101"), []byte("R-12"), PutUint64(1700000000), []byte("active"),
	})
	require.NoError(t, err)
	g.Assert(t, "session_record", []byte(hex.EncodeToString(session)))

	cert, err := Shape{Bytes, Bytes, Bytes, Uint64, Bytes}.Encode([][]byte{
		[]byte("0xRECIPIENT"), []byte("title-sha256"), []byte("meta-sha256"), PutUint64(0x7c7c), []byte("valid"),
	})
	require.NoError(t, err)
	g.Assert(t, "certificate_record", []byte(hex.EncodeToString(cert)))
}

func TestEncodeRejects(t *testing.T) {
	t.Run("wrong arity", func(t *testing.T) {
		_, err := sessionShape.Encode([][]byte{[]byte("a")})
		assert.True(t, failure.HasCode(err, failure.CodeShapeMismatch))
	})

	t.Run("delimiter in byte field", func(t *testing.T) {
		_, err := Encode([]byte("a|b"))
		assert.True(t, failure.HasCode(err, failure.CodeFormat))
	})

	t.Run("short numeric field", func(t *testing.T) {
		_, err := Shape{Uint64}.Encode([][]byte{{1, 2, 3}})
		assert.True(t, failure.HasCode(err, failure.CodeFormat))
	})
}

func TestDecodeRejects(t *testing.T) {
	valid, err := sessionShape.Encode([][]byte{
		[]byte("CS101"), []byte("R-12"), PutUint64(1), []byte("active"),
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		shape Shape
		buf   []byte
		code  failure.Code
	}{
		{"too few fields", Text(3), []byte("a|b"), failure.CodeShapeMismatch},
		{"too many fields", Text(2), []byte("a|b|c"), failure.CodeShapeMismatch},
		{"trailing delimiter", Text(1), []byte("a|"), failure.CodeShapeMismatch},
		{"truncated numeric", Shape{Bytes, Uint64}, []byte("a|\x00\x01"), failure.CodeFormat},
		{"numeric too wide", Shape{Uint64, Bytes}, []byte("\x00\x00\x00\x00\x00\x00\x00\x01\x02|x"), failure.CodeFormat},
		{"trailing bytes after numeric", Shape{Bytes, Uint64}, append([]byte("a|"), 0, 0, 0, 0, 0, 0, 0, 1, 9), failure.CodeFormat},
		{"session read as vote", Shape{Bytes, Uint64}, valid, failure.CodeFormat},
		{"session with extra field", append(Shape{}, sessionShape[:3]...), valid, failure.CodeShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.shape.Decode(tt.buf)
			require.Error(t, err)
			assert.Equal(t, tt.code, failure.CodeOf(err), err.Error())
		})
	}
}

func TestDecodeByCount(t *testing.T) {
	fields, err := Decode([]byte("ended"), 1)
	require.NoError(t, err)
	assert.Equal(t, "ended", string(fields[0]))

	_, err = Decode([]byte("a|b"), 1)
	assert.True(t, failure.HasCode(err, failure.CodeShapeMismatch))
}

func TestUint64(t *testing.T) {
	v, err := GetUint64(PutUint64(1700000000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), v)

	_, err = GetUint64([]byte{1})
	assert.True(t, failure.HasCode(err, failure.CodeFormat))
}
