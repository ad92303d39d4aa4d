package dynamic

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/protolite/dynpb/fieldtype"
	"github.com/protolite/dynpb/wire"
)

// plain flattens a message into nested Go maps and slices for go-cmp.
func plain(m *Message) map[string]interface{} {
	out := make(map[string]interface{})
	for _, fv := range m.ListFields() {
		out[fv.Field.Name] = plainValue(fv.Value)
	}
	return out
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case *Message:
		return plain(t)
	case *List:
		vals := make([]interface{}, 0, t.Len())
		for _, e := range t.Values() {
			vals = append(vals, plainValue(e))
		}
		return vals
	case *Map:
		entries := make(map[interface{}]interface{})
		t.Range(func(k, e interface{}) bool {
			entries[k] = plainValue(e)
			return true
		})
		return entries
	default:
		return v
	}
}

func buildPerson(t *testing.T, r *testResolver) *Message {
	t.Helper()
	p := r.newMessage("test.Person")
	require.NoError(t, p.Set("name", "Ada"))
	require.NoError(t, p.Set("id", 7))

	scores, err := p.List("scores")
	require.NoError(t, err)
	require.NoError(t, scores.Extend(1, 2, 300))

	addr, err := p.Mutable("address")
	require.NoError(t, err)
	require.NoError(t, addr.Set("street", "Main"))
	geo, err := addr.Mutable("geo")
	require.NoError(t, err)
	require.NoError(t, geo.Set("lat", 1.5))
	require.NoError(t, geo.Set("lng", -2.0))

	tags, err := p.Map("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Set("b", 2))
	require.NoError(t, tags.Set("a", 1))

	phones, err := p.List("phones")
	require.NoError(t, err)
	for _, n := range []string{"1", "2"} {
		ph, err := phones.Add()
		require.NoError(t, err)
		require.NoError(t, ph.Set("number", n))
	}

	require.NoError(t, p.Set("color", 2))
	require.NoError(t, p.Set("phone", "555"))

	results, err := p.List("result")
	require.NoError(t, err)
	res, err := results.Add()
	require.NoError(t, err)
	require.NoError(t, res.Set("url", "u"))

	byID, err := p.Map("by_id")
	require.NoError(t, err)
	ph, err := byID.Mutable(3)
	require.NoError(t, err)
	require.NoError(t, ph.Set("number", "x"))
	return p
}

func fieldNumbers(t *testing.T, b []byte) []protowire.Number {
	t.Helper()
	var nums []protowire.Number
	for len(b) > 0 {
		num, _, n := protowire.ConsumeField(b)
		require.GreaterOrEqual(t, n, 0, "malformed field: %v", protowire.ParseError(n))
		nums = append(nums, num)
		b = b[n:]
	}
	return nums
}

func TestNestedRoundTrip(t *testing.T) {
	r := newTestResolver()
	p := buildPerson(t, r)

	b, err := p.Marshal()
	require.NoError(t, err)
	assert.Equal(t, len(b), p.ByteSize())
	assert.Equal(t, []protowire.Number{1, 2, 4, 5, 6, 6, 7, 7, 8, 9, 11, 13}, fieldNumbers(t, b))

	q := r.newMessage("test.Person")
	require.NoError(t, q.Unmarshal(b))
	assert.True(t, Equal(p, q))
	if diff := cmp.Diff(plain(p), plain(q)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := q.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, again)
}

func TestProto3Scalars(t *testing.T) {
	r := newTestResolver()
	m := r.newMessage("test.Scalar")
	require.NoError(t, m.Set("a", 150))
	require.NoError(t, m.Set("s", ""))
	l, err := m.List("r")
	require.NoError(t, err)
	require.NoError(t, l.Extend(-1, 1))

	b, err := m.Marshal()
	require.NoError(t, err)
	want := protowire.AppendTag(nil, 1, protowire.VarintType)
	want = protowire.AppendVarint(want, 150)
	want = protowire.AppendTag(want, 3, protowire.BytesType)
	want = protowire.AppendBytes(want, []byte{0x01, 0x02})
	assert.Equal(t, want, b)

	_, err = m.Has("a")
	assert.True(t, errors.Is(err, ErrNoPresence))

	require.NoError(t, m.Set("a", 0))
	for _, fv := range m.ListFields() {
		assert.NotEqual(t, "a", fv.Field.Name)
	}
	v, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)
}

func TestProto3OptionalTracksPresence(t *testing.T) {
	r := newTestResolver()
	m := r.newMessage("test.Scalar")

	has, err := m.Has("o")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, m.Set("o", 0))
	has, err = m.Has("o")
	require.NoError(t, err)
	assert.True(t, has)

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x20, 0x00}, b)
}

func TestDefaults(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")

	tests := []struct {
		field string
		want  interface{}
	}{
		{"id", int32(0)},
		{"email", "none"},
		{"color", int32(1)},
		{"phone", ""},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			v, err := p.Get(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			has, err := p.Has(tt.field)
			require.NoError(t, err)
			assert.False(t, has)
		})
	}
	assert.Empty(t, p.ListFields())
}

func TestSubMessagePresence(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")

	v, err := p.Get("address")
	require.NoError(t, err)
	addr := v.(*Message)
	has, err := p.Has("address")
	require.NoError(t, err)
	assert.False(t, has, "reading a sub-message does not set it")

	v, err = addr.Get("geo")
	require.NoError(t, err)
	geo := v.(*Message)
	require.NoError(t, geo.Set("lat", 1.5))

	has, err = p.Has("address")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = addr.Has("geo")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, p.ClearField("address"))
	has, err = p.Has("address")
	require.NoError(t, err)
	assert.False(t, has)

	// A detached sub-message no longer affects its former parent.
	require.NoError(t, geo.Set("lng", 3.0))
	has, err = p.Has("address")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestOneof(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")

	which, err := p.WhichOneof("contact")
	require.NoError(t, err)
	assert.Equal(t, "", which)

	require.NoError(t, p.Set("phone", "555"))
	which, err = p.WhichOneof("contact")
	require.NoError(t, err)
	assert.Equal(t, "phone", which)

	alt, err := p.Mutable("alt")
	require.NoError(t, err)
	require.NoError(t, alt.Set("street", "Elm"))
	which, err = p.WhichOneof("contact")
	require.NoError(t, err)
	assert.Equal(t, "alt", which)
	has, err := p.Has("phone")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, p.Set("phone", "777"))
	has, err = p.Has("alt")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, p.ClearField("contact"))
	which, err = p.WhichOneof("contact")
	require.NoError(t, err)
	assert.Equal(t, "", which)

	_, err = p.WhichOneof("nope")
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestByteSizeTracksNestedChanges(t *testing.T) {
	r := newTestResolver()
	p := buildPerson(t, r)
	size := p.ByteSize()

	addr, err := p.Mutable("address")
	require.NoError(t, err)
	require.NoError(t, addr.Set("street", "Main Street"))
	assert.Equal(t, size+7, p.ByteSize())

	b, err := p.Marshal()
	require.NoError(t, err)
	assert.Equal(t, len(b), p.ByteSize())

	v, err := addr.Get("geo")
	require.NoError(t, err)
	require.NoError(t, v.(*Message).ClearField("lng"))
	assert.Equal(t, size+7-9, p.ByteSize())
}

func TestPackedAndUnpackedAccepted(t *testing.T) {
	r := newTestResolver()
	var in []byte
	for _, v := range []uint64{1, 2} {
		in = protowire.AppendTag(in, 4, protowire.VarintType)
		in = protowire.AppendVarint(in, v)
	}
	in = protowire.AppendTag(in, 4, protowire.BytesType)
	in = protowire.AppendBytes(in, []byte{0x03})

	p := r.newMessage("test.Person")
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal(in, p))
	scores, err := p.List("scores")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int32(1), int32(2), int32(3)}, scores.Values())

	out, err := p.MarshalPartial()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x22, 0x03, 0x01, 0x02, 0x03}, out)
}

func TestMapSerialization(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")
	tags, err := p.Map("tags")
	require.NoError(t, err)
	require.NoError(t, tags.Set("b", 2))
	require.NoError(t, tags.Set("a", 1))
	assert.Equal(t, []interface{}{"a", "b"}, tags.Keys())

	out, err := p.MarshalPartial()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x32, 0x05, 0x0a, 0x01, 'a', 0x10, 0x01,
		0x32, 0x05, 0x0a, 0x01, 'b', 0x10, 0x02,
	}, out)

	tags.Clear()
	require.NoError(t, tags.Set("", 0))
	out, err = p.MarshalPartial()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x32, 0x04, 0x0a, 0x00, 0x10, 0x00}, out)
}

func TestMapEntryParsing(t *testing.T) {
	r := newTestResolver()
	in := []byte{
		0x32, 0x00, // empty entry: "" -> 0
		0x32, 0x05, 0x0a, 0x01, 'k', 0x10, 0x01,
		0x32, 0x07, 0x0a, 0x01, 'k', 0x10, 0x02, 0x18, 0x09, // later entry wins, stray field skipped
	}
	p := r.newMessage("test.Person")
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal(in, p))
	tags, err := p.Map("tags")
	require.NoError(t, err)
	assert.Equal(t, 2, tags.Len())

	v, ok, err := tags.Get("")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)
	v, ok, err = tags.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), v)
}

func TestMessageValuedMap(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")
	byID, err := p.Map("by_id")
	require.NoError(t, err)

	assert.True(t, errors.Is(byID.Set(1, "x"), ErrWrongKind))
	ph, err := byID.Mutable(int64(9))
	require.NoError(t, err)
	require.NoError(t, ph.Set("number", "nine"))

	_, err = byID.Mutable("nine")
	assert.True(t, errors.Is(err, fieldtype.ErrWrongType))

	b, err := p.MarshalPartial()
	require.NoError(t, err)
	q := r.newMessage("test.Person")
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal(b, q))
	assert.True(t, Equal(p, q))

	require.NoError(t, byID.Delete(9))
	assert.Equal(t, 0, byID.Len())
}

func TestRequiredFields(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")
	_, err := p.Mutable("address")
	require.NoError(t, err)
	phones, err := p.List("phones")
	require.NoError(t, err)
	_, err = phones.Add()
	require.NoError(t, err)
	byID, err := p.Map("by_id")
	require.NoError(t, err)
	_, err = byID.Mutable(3)
	require.NoError(t, err)

	assert.False(t, p.IsInitialized())
	assert.Equal(t, []string{"name", "address.street", "phones[0].number", "by_id[3].number"}, p.FindInitializationErrors())

	_, err = p.Marshal()
	require.Error(t, err)
	assert.True(t, errors.Is(err, wire.ErrMissingRequired))
	assert.True(t, wire.IsEncodeError(err))
	assert.Equal(t, "Message test.Person is missing required fields: name,address.street,phones[0].number,by_id[3].number", err.Error())

	b, err := p.MarshalPartial()
	require.NoError(t, err)

	q := r.newMessage("test.Person")
	err = q.Unmarshal(b)
	assert.True(t, errors.Is(err, wire.ErrMissingRequired))
	assert.True(t, wire.IsDecodeError(err))
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal(b, q))
	assert.True(t, Equal(p, q))
}

func TestUnknownFieldsPreserved(t *testing.T) {
	r := newTestResolver()
	b, err := buildPerson(t, r).Marshal()
	require.NoError(t, err)

	in := append([]byte(nil), b...)
	lite := r.newMessage("test.PersonLite")
	require.NoError(t, lite.Unmarshal(in))
	assert.Len(t, lite.ListFields(), 1)
	assert.NotEmpty(t, lite.UnknownFields())

	// Unknown fields are copied out of the input buffer.
	for i := range in {
		in[i] = 0
	}
	out, err := lite.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, out)

	full := r.newMessage("test.Person")
	require.NoError(t, full.Unmarshal(out))
	assert.True(t, Equal(buildPerson(t, r), full))

	discard := r.newMessage("test.PersonLite")
	require.NoError(t, UnmarshalOptions{DiscardUnknown: true}.Unmarshal(b, discard))
	assert.Empty(t, discard.UnknownFields())
	out, err = discard.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x03, 'A', 'd', 'a'}, out)

	lite.DiscardUnknown()
	assert.Equal(t, 5, lite.ByteSize())
}

func TestUnknownFieldsKeepWirePosition(t *testing.T) {
	r := newTestResolver()
	// PersonSparse knows id (2), address (5) and color (8) only.
	tests := []struct {
		name string
		in   []byte
	}{
		{"unknown_between_known", []byte{0x10, 0x01, 0x18, 0x02, 0x40, 0x01}},
		{"known_between_unknown", []byte{0x0a, 0x01, 'a', 0x10, 0x02, 0x1a, 0x01, 'b'}},
		{"unknown_first_out_of_order", []byte{0x18, 0x02, 0x10, 0x01}},
		{"closed_enum_value", []byte{0x10, 0x01, 0x40, 0x07, 0x48, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sparse := r.newMessage("test.PersonSparse")
			require.NoError(t, sparse.Unmarshal(tt.in))
			out, err := sparse.Marshal()
			require.NoError(t, err)
			assert.Equal(t, tt.in, out)
			assert.Equal(t, len(out), sparse.ByteSize())
		})
	}

	sparse := r.newMessage("test.PersonSparse")
	require.NoError(t, sparse.Unmarshal([]byte{0x0a, 0x01, 'a', 0x10, 0x02, 0x1a, 0x01, 'b'}))
	require.NoError(t, sparse.Set("id", 9))
	out, err := sparse.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x01, 'a', 0x10, 0x09, 0x1a, 0x01, 'b'}, out)

	// A full Person read through the sparse schema writes back unchanged.
	b, err := buildPerson(t, r).Marshal()
	require.NoError(t, err)
	sparse = r.newMessage("test.PersonSparse")
	require.NoError(t, sparse.Unmarshal(b))
	out, err = sparse.Marshal()
	require.NoError(t, err)
	assert.Equal(t, b, out)
}

func TestUnknownFieldsCompareUnordered(t *testing.T) {
	r := newTestResolver()
	a := r.newMessage("test.PersonLite")
	b := r.newMessage("test.PersonLite")
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal([]byte{0x10, 0x01, 0x18, 0x02}, a))
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal([]byte{0x18, 0x02, 0x10, 0x01}, b))
	assert.True(t, Equal(a, b))
}

func TestClosedEnumUnknownValue(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal([]byte{0x40, 0x05}, p))

	has, err := p.Has("color")
	require.NoError(t, err)
	assert.False(t, has)
	assert.Equal(t, []wire.UnknownField{{Tag: []byte{0x40}, Value: []byte{0x05}}}, p.UnknownFields())

	out, err := p.MarshalPartial()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x40, 0x05}, out)

	assert.True(t, errors.Is(p.Set("color", 5), fieldtype.ErrUnknownEnumValue))
}

func TestWireTypeMismatchKeptUnknown(t *testing.T) {
	r := newTestResolver()
	in := []byte{0x12, 0x01, 'x'} // id (int32) sent as bytes
	p := r.newMessage("test.Person")
	require.NoError(t, UnmarshalOptions{AllowPartial: true}.Unmarshal(in, p))

	has, err := p.Has("id")
	require.NoError(t, err)
	assert.False(t, has)
	out, err := p.MarshalPartial()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGroups(t *testing.T) {
	r := newTestResolver()
	in := protowire.AppendTag(nil, 1, protowire.BytesType)
	in = protowire.AppendString(in, "n")
	in = protowire.AppendTag(in, 11, protowire.StartGroupType)
	in = protowire.AppendTag(in, 12, protowire.BytesType)
	in = protowire.AppendString(in, "u")
	in = protowire.AppendTag(in, 11, protowire.EndGroupType)

	p := r.newMessage("test.Person")
	require.NoError(t, p.Unmarshal(in))
	results, err := p.List("result")
	require.NoError(t, err)
	require.Equal(t, 1, results.Len())
	url, err := results.Get(0).(*Message).Get("url")
	require.NoError(t, err)
	assert.Equal(t, "u", url)

	out, err := p.Marshal()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	bad := protowire.AppendTag(nil, 11, protowire.StartGroupType)
	bad = protowire.AppendTag(bad, 12, protowire.EndGroupType)
	err = UnmarshalOptions{AllowPartial: true}.Unmarshal(bad, p)
	assert.True(t, errors.Is(err, wire.ErrGroupMismatch))

	open := protowire.AppendTag(nil, 11, protowire.StartGroupType)
	err = UnmarshalOptions{AllowPartial: true}.Unmarshal(open, p)
	assert.True(t, errors.Is(err, wire.ErrUnexpectedEOF))
}

func TestMalformedInput(t *testing.T) {
	r := newTestResolver()
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"stray end group", protowire.AppendTag(nil, 5, protowire.EndGroupType), wire.ErrUnexpectedEndGroup},
		{"field zero", []byte{0x00, 0x01}, wire.ErrInvalidFieldNumber},
		{"truncated length", []byte{0x0a, 0x05, 'a', 'b'}, wire.ErrUnexpectedEOF},
		{"truncated varint", []byte{0x10, 0x80}, wire.ErrUnexpectedEOF},
		{"reserved wire type", []byte{0x1e}, wire.ErrInvalidWireType},
		{"sub-message end group", []byte{0x2a, 0x02, 0x0c, 0x00}, wire.ErrLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.newMessage("test.Person")
			err := UnmarshalOptions{AllowPartial: true}.Unmarshal(tt.in, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, wire.IsDecodeError(err))
		})
	}

	err := r.newMessage("test.Person").Unmarshal(protowire.AppendTag(nil, 5, protowire.EndGroupType))
	assert.EqualError(t, err, "Unexpected end-group tag.")
}

func TestRecursionLimit(t *testing.T) {
	r := newTestResolver()
	in := protowire.AppendTag(nil, 2, protowire.VarintType)
	in = protowire.AppendVarint(in, 1)
	for i := 0; i < 5; i++ {
		wrapped := protowire.AppendTag(nil, 1, protowire.BytesType)
		in = protowire.AppendBytes(wrapped, in)
	}

	n := r.newMessage("test.Node")
	err := UnmarshalOptions{RecursionLimit: 3}.Unmarshal(in, n)
	assert.True(t, errors.Is(err, wire.ErrRecursionLimit), "got %v", err)

	require.NoError(t, n.Unmarshal(in))
	cur := n
	for i := 0; i < 5; i++ {
		v, err := cur.Get("child")
		require.NoError(t, err)
		cur = v.(*Message)
	}
	v, err := cur.Get("value")
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestMergeFrom(t *testing.T) {
	r := newTestResolver()
	a := r.newMessage("test.Person")
	require.NoError(t, a.Set("name", "a"))
	require.NoError(t, a.Set("id", 1))
	scores, _ := a.List("scores")
	require.NoError(t, scores.Append(1))
	tags, _ := a.Map("tags")
	require.NoError(t, tags.Set("x", 1))
	addr, _ := a.Mutable("address")
	require.NoError(t, addr.Set("street", "s"))
	first, err := a.Marshal()
	require.NoError(t, err)

	b := r.newMessage("test.Person")
	require.NoError(t, b.Set("id", 2))
	scores, _ = b.List("scores")
	require.NoError(t, scores.Append(2))
	tags, _ = b.Map("tags")
	require.NoError(t, tags.Set("x", 5))
	require.NoError(t, tags.Set("y", 2))
	addr, _ = b.Mutable("address")
	geo, _ := addr.Mutable("geo")
	require.NoError(t, geo.Set("lat", 1.0))
	second, err := b.MarshalPartial()
	require.NoError(t, err)

	require.NoError(t, a.MergeFrom(b))
	want := map[string]interface{}{
		"name":    "a",
		"id":      int32(2),
		"scores":  []interface{}{int32(1), int32(2)},
		"tags":    map[interface{}]interface{}{"x": int64(5), "y": int64(2)},
		"address": map[string]interface{}{"street": "s", "geo": map[string]interface{}{"lat": float64(1)}},
	}
	if diff := cmp.Diff(want, plain(a)); diff != "" {
		t.Errorf("merge mismatch (-want +got):\n%s", diff)
	}

	// Merging messages is the same as parsing their concatenation.
	parsed := r.newMessage("test.Person")
	require.NoError(t, parsed.Unmarshal(append(first, second...)))
	assert.True(t, Equal(a, parsed))

	// The source is not shared with the destination.
	require.NoError(t, geo.Set("lat", 9.0))
	if diff := cmp.Diff(want, plain(a)); diff != "" {
		t.Errorf("merge aliased source (-want +got):\n%s", diff)
	}
}

func TestMergeCopiesBytes(t *testing.T) {
	r := newTestResolver()
	src := r.newMessage("test.Scalar")
	require.NoError(t, src.Set("b", []byte{1, 2}))
	dst := r.newMessage("test.Scalar")
	require.NoError(t, dst.MergeFrom(src))

	v, err := src.Get("b")
	require.NoError(t, err)
	v.([]byte)[0] = 9

	got, err := dst.Get("b")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
}

func TestCopyFromAndClear(t *testing.T) {
	r := newTestResolver()
	p := buildPerson(t, r)

	require.NoError(t, p.CopyFrom(p))
	assert.True(t, Equal(buildPerson(t, r), p))
	assert.Error(t, p.MergeFrom(p))
	assert.True(t, errors.Is(p.MergeFrom(r.newMessage("test.Node")), ErrDescriptorMismatch))

	q := r.newMessage("test.Person")
	require.NoError(t, q.Set("id", 99))
	require.NoError(t, q.CopyFrom(p))
	assert.True(t, Equal(p, q))

	q.Clear()
	assert.Empty(t, q.ListFields())
	assert.Equal(t, 0, q.ByteSize())

	// Setting a sub-message field copies the value in.
	addr := r.newMessage("test.Address")
	require.NoError(t, addr.Set("street", "Oak"))
	require.NoError(t, q.Set("address", addr))
	require.NoError(t, addr.Set("street", "Pine"))
	v, err := q.Get("address")
	require.NoError(t, err)
	street, err := v.(*Message).Get("street")
	require.NoError(t, err)
	assert.Equal(t, "Oak", street)
}

func TestAccessorErrors(t *testing.T) {
	r := newTestResolver()
	p := r.newMessage("test.Person")

	_, err := p.Get("nope")
	assert.True(t, errors.Is(err, ErrUnknownField))
	_, err = p.List("id")
	assert.True(t, errors.Is(err, ErrWrongKind))
	_, err = p.Map("scores")
	assert.True(t, errors.Is(err, ErrWrongKind))
	_, err = p.Mutable("id")
	assert.True(t, errors.Is(err, ErrWrongKind))
	assert.True(t, errors.Is(p.Set("scores", 1), ErrWrongKind))
	assert.True(t, errors.Is(p.Set("address", "x"), ErrWrongKind))
	assert.True(t, errors.Is(p.Set("id", "x"), fieldtype.ErrWrongType))
	_, err = p.Has("scores")
	assert.True(t, errors.Is(err, ErrNoPresence))

	scores, err := p.List("scores")
	require.NoError(t, err)
	assert.True(t, errors.Is(scores.Append("x"), fieldtype.ErrWrongType))
	assert.True(t, errors.Is(scores.Extend(1, "x"), fieldtype.ErrWrongType))
	assert.Equal(t, 0, scores.Len(), "failed Extend appends nothing")
	_, err = scores.Add()
	assert.True(t, errors.Is(err, ErrWrongKind))

	require.NoError(t, scores.Extend(1, 3))
	require.NoError(t, scores.Insert(1, 2))
	require.NoError(t, scores.Set(0, 0))
	assert.Equal(t, []interface{}{int32(0), int32(2), int32(3)}, scores.Values())
	require.NoError(t, scores.Delete(0))
	assert.Equal(t, []interface{}{int32(2), int32(3)}, scores.Values())
	assert.Error(t, scores.Delete(5))
	assert.Error(t, scores.Insert(-1, 1))

	phones, err := p.List("phones")
	require.NoError(t, err)
	assert.True(t, errors.Is(phones.Append(1), ErrWrongKind))
}

func TestMessageSet(t *testing.T) {
	r := newTestResolver()
	item := r.newMessage("test.Node")
	require.NoError(t, item.Set("value", 5))

	set := r.newMessage("test.Set")
	require.NoError(t, set.AddMessageSetItem(100, item))
	b, err := set.Marshal()
	require.NoError(t, err)
	assert.Equal(t, []protowire.Number{1}, fieldNumbers(t, b))
	assert.Equal(t, len(b), set.ByteSize())

	parsed := r.newMessage("test.Set")
	require.NoError(t, parsed.Unmarshal(b))
	items, err := parsed.MessageSetItems()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int32(100), items[0].TypeID)

	got := r.newMessage("test.Node")
	require.NoError(t, got.Unmarshal(items[0].Message))
	assert.True(t, Equal(item, got))

	err = r.newMessage("test.Person").AddMessageSetItem(100, item)
	assert.True(t, errors.Is(err, ErrWrongKind))
}
