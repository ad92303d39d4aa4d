package dynpb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/protolite/dynpb/dynamic"
	"github.com/protolite/dynpb/schema"
	"github.com/protolite/dynpb/wire"
)

const userProto = `syntax = "proto3";
package demo;

message User {
  int32 id = 1;
  string name = 2;
  string email = 3;
  bool active = 4;
  repeated string roles = 5;
  Address address = 6;
  map<string, int64> counters = 7;
  Status status = 8;
}

message Address {
  string street = 1;
  string city = 2;
}

enum Status {
  STATUS_UNKNOWN = 0;
  STATUS_ACTIVE = 1;
}

message Legacy {
  int32 id = 1;
}
`

const requiredProto = `syntax = "proto2";
package demo2;

message Req {
  required int32 id = 1;
  optional string note = 2;
}
`

func writeSchema(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{"user.proto": userProto, "req.proto": requiredProto} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestProtolite(t *testing.T, mutate func(*Config)) *Protolite {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ProtoPaths = []string{writeSchema(t)}
	cfg.Files = []string{"user.proto", "req.proto"}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return p
}

func buildUser(t *testing.T, p *Protolite) *dynamic.Message {
	t.Helper()
	u, err := p.NewMessage("demo.User")
	require.NoError(t, err)
	require.NoError(t, u.Set("id", int32(12345)))
	require.NoError(t, u.Set("name", "John Doe"))
	require.NoError(t, u.Set("email", "john.doe@example.com"))
	require.NoError(t, u.Set("active", true))
	roles, err := u.List("roles")
	require.NoError(t, err)
	require.NoError(t, roles.Extend("admin", "dev"))
	addr, err := u.Mutable("address")
	require.NoError(t, err)
	require.NoError(t, addr.Set("city", "Paris"))
	counters, err := u.Map("counters")
	require.NoError(t, err)
	require.NoError(t, counters.Set("logins", int64(3)))
	require.NoError(t, u.Set("status", int32(1)))
	return u
}

func TestProtolite_New(t *testing.T) {
	p := newTestProtolite(t, nil)
	want := []string{"demo.Address", "demo.Legacy", "demo.User", "demo2.Req"}
	if diff := cmp.Diff(want, p.ListMessages()); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"demo.Status"}, p.ListEnums()); diff != "" {
		t.Errorf("enums (-want +got):\n%s", diff)
	}
	if len(p.ListServices()) != 0 {
		t.Errorf("Expected no services, got %v", p.ListServices())
	}

	compiled := newTestProtolite(t, func(c *Config) { c.Compile = true; c.WellKnownTypes = true })
	if _, err := compiled.NewMessage("demo.User"); err != nil {
		t.Errorf("compiled registry: %v", err)
	}
	if _, err := compiled.NewMessage("google.protobuf.Timestamp"); err != nil {
		t.Errorf("well-known types: %v", err)
	}

	cfg := DefaultConfig()
	cfg.BatchWorkers = -1
	if _, err := New(cfg); err == nil {
		t.Error("Expected an invalid config to be rejected")
	}
	cfg = DefaultConfig()
	cfg.Files = []string{"missing.proto"}
	if _, err := New(cfg); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestProtolite_ParseAndMarshal(t *testing.T) {
	p := newTestProtolite(t, nil)

	t.Run("empty_data", func(t *testing.T) {
		msg, err := p.Parse([]byte{}, "demo.User")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(msg.ListFields()) != 0 {
			t.Errorf("Expected empty result, got %v", msg)
		}
	})

	t.Run("simple_varint", func(t *testing.T) {
		// field 1 = varint 300
		msg, err := p.Parse([]byte{0x08, 0xac, 0x02}, "demo.User")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if id, _ := msg.Get("id"); id != int32(300) {
			t.Errorf("Expected 300, got %v", id)
		}
	})

	t.Run("round_trip", func(t *testing.T) {
		data, err := p.Marshal(buildUser(t, p))
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		msg, err := p.Parse(data, "demo.User")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := map[string]interface{}{
			"id":       int32(12345),
			"name":     "John Doe",
			"email":    "john.doe@example.com",
			"active":   true,
			"roles":    []interface{}{"admin", "dev"},
			"address":  map[string]interface{}{"city": "Paris"},
			"counters": map[interface{}]interface{}{"logins": int64(3)},
			"status":   int32(1),
		}
		if diff := cmp.Diff(want, ToMap(msg)); diff != "" {
			t.Errorf("parsed (-want +got):\n%s", diff)
		}
	})

	t.Run("unknown_type", func(t *testing.T) {
		_, err := p.Parse(nil, "demo.Nope")
		if err == nil || !strings.Contains(err.Error(), "message type not found") {
			t.Errorf("Expected lookup error, got %v", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := p.Parse([]byte{0x08}, "demo.User")
		var de *wire.DecodeError
		if !errors.As(err, &de) {
			t.Errorf("Expected a DecodeError, got %v", err)
		}
	})
}

func TestProtolite_Options(t *testing.T) {
	// Legacy only knows field 1; field 2 is unknown to it.
	var payload []byte
	payload = protowire.AppendTag(payload, 1, protowire.VarintType)
	payload = protowire.AppendVarint(payload, 5)
	payload = protowire.AppendTag(payload, 2, protowire.BytesType)
	payload = protowire.AppendString(payload, "extra")

	keep := newTestProtolite(t, nil)
	msg, err := keep.Parse(payload, "demo.Legacy")
	require.NoError(t, err)
	out, err := keep.Marshal(msg)
	require.NoError(t, err)
	if diff := cmp.Diff(payload, out); diff != "" {
		t.Errorf("unknown fields should round-trip (-want +got):\n%s", diff)
	}

	discard := newTestProtolite(t, func(c *Config) { c.DiscardUnknown = true })
	msg, err = discard.Parse(payload, "demo.Legacy")
	require.NoError(t, err)
	require.Empty(t, msg.UnknownFields())

	strict := newTestProtolite(t, nil)
	_, err = strict.Parse([]byte{0x12, 0x00}, "demo2.Req")
	require.ErrorIs(t, err, wire.ErrMissingRequired)
	req, err := strict.NewMessage("demo2.Req")
	require.NoError(t, err)
	_, err = strict.Marshal(req)
	require.ErrorIs(t, err, wire.ErrMissingRequired)

	partial := newTestProtolite(t, func(c *Config) { c.AllowPartial = true })
	msg, err = partial.Parse([]byte{0x12, 0x00}, "demo2.Req")
	require.NoError(t, err)
	require.False(t, msg.IsInitialized())
	_, err = partial.Marshal(msg)
	require.NoError(t, err)

	shallow := newTestProtolite(t, func(c *Config) { c.RecursionLimit = 1 })
	// User.address holding a nested message is depth 1.
	_, err = shallow.Parse([]byte{0x32, 0x02, 0x12, 0x00}, "demo.User")
	require.NoError(t, err)
}

func TestProtolite_Unmarshal(t *testing.T) {
	p := newTestProtolite(t, nil)
	data, err := p.Marshal(buildUser(t, p))
	require.NoError(t, err)

	type Address struct {
		City string
	}
	type User struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Email    string
		Active   bool
		Roles    []string
		Address  *Address
		Counters map[string]int64
		Status   int32
		Missing  string
	}

	var user User
	if err := p.Unmarshal(data, "demo.User", &user); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := User{
		ID:       12345,
		Name:     "John Doe",
		Email:    "john.doe@example.com",
		Active:   true,
		Roles:    []string{"admin", "dev"},
		Address:  &Address{City: "Paris"},
		Counters: map[string]int64{"logins": 3},
		Status:   1,
	}
	if diff := cmp.Diff(want, user); diff != "" {
		t.Errorf("struct (-want +got):\n%s", diff)
	}

	if err := p.Unmarshal(data, "demo.User", user); err == nil {
		t.Error("Expected error for a non-pointer target")
	}
	var narrow struct{ ID int8 }
	if err := p.Unmarshal(data, "demo.User", &narrow); err == nil || !strings.Contains(err.Error(), "overflows int8") {
		t.Errorf("Expected overflow error, got %v", err)
	}
	var wrong struct{ Name []int }
	if err := p.Unmarshal(data, "demo.User", &wrong); err == nil || !strings.Contains(err.Error(), "failed to set field Name") {
		t.Errorf("Expected conversion error, got %v", err)
	}
}

func TestSetFieldValue_Conversions(t *testing.T) {
	p := &Protolite{}
	tests := []struct {
		name    string
		target  interface{}
		value   interface{}
		want    interface{}
		wantErr bool
	}{
		{"widen_int", new(int64), int32(-7), int64(-7), false},
		{"narrow_int_fits", new(int8), int64(100), int8(100), false},
		{"narrow_int_overflows", new(int32), int64(1) << 40, nil, true},
		{"negative_to_uint", new(uint32), int32(-1), nil, true},
		{"uint_overflows_int", new(int64), uint64(1) << 63, nil, true},
		{"uint_narrow", new(uint8), uint32(256), nil, true},
		{"int_to_string", new(string), int32(65), nil, true},
		{"uint_to_string", new(string), uint64(65), nil, true},
		{"bytes_to_string", new(string), []byte("ok"), "ok", false},
		{"integral_float_to_int", new(int32), float64(3), int32(3), false},
		{"fractional_float_to_int", new(int32), 2.5, nil, true},
		{"float_overflows_float32", new(float32), 1e300, nil, true},
		{"double_to_float32", new(float32), 0.5, float32(0.5), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := reflect.ValueOf(tt.target).Elem()
			err := p.setFieldValue(target, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setFieldValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				if diff := cmp.Diff(tt.want, target.Interface()); diff != "" {
					t.Errorf("value (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestProtolite_Batch(t *testing.T) {
	p := newTestProtolite(t, func(c *Config) { c.BatchWorkers = 3 })
	ctx := context.Background()

	var msgs []*dynamic.Message
	for i := 0; i < 20; i++ {
		m, err := p.NewMessage("demo.User")
		require.NoError(t, err)
		require.NoError(t, m.Set("id", int32(i)))
		msgs = append(msgs, m)
	}
	payloads, err := p.MarshalBatch(ctx, msgs)
	require.NoError(t, err)
	require.Len(t, payloads, len(msgs))

	parsed, err := p.ParseBatch(ctx, "demo.User", payloads)
	require.NoError(t, err)
	for i, m := range parsed {
		if !dynamic.Equal(msgs[i], m) {
			t.Errorf("message %d differs after batch round trip: %v", i, m)
		}
	}

	payloads[7] = []byte{0x08}
	_, err = p.ParseBatch(ctx, "demo.User", payloads)
	if err == nil || !strings.Contains(err.Error(), "payload 7") {
		t.Errorf("Expected error for payload 7, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.MarshalBatch(cancelled, msgs)
	require.ErrorIs(t, err, context.Canceled)

	req, err := p.NewMessage("demo2.Req")
	require.NoError(t, err)
	_, err = p.MarshalBatch(ctx, []*dynamic.Message{req})
	require.ErrorIs(t, err, wire.ErrMissingRequired)
}

func TestProtolite_LoadRepo(t *testing.T) {
	p, err := New(DefaultConfig())
	require.NoError(t, err)
	repo := &schema.ProtoRepo{ProtoFiles: map[string]*schema.ProtoFile{
		"ping.proto": {
			Package: "svc",
			Messages: []*schema.Message{{
				Name: "Ping",
				Fields: []*schema.Field{{
					Name: "seq", Number: 1, Label: schema.LabelRequired, OneofIndex: -1,
					Type: schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeUint32},
				}},
			}},
		},
	}}
	require.NoError(t, p.LoadRepo(repo))

	msg, err := p.Parse([]byte{0x08, 0x7f}, "svc.Ping")
	require.NoError(t, err)
	seq, err := msg.Get("seq")
	require.NoError(t, err)
	require.Equal(t, uint32(127), seq)
}
