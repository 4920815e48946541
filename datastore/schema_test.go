package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		format string
		values map[string]any
	}{
		{"bytes", "flag:b,status:B", map[string]any{"flag": int8(-12), "status": uint8(200)}},
		{"shorts", "count:h,raw:H", map[string]any{"count": int16(-1000), "raw": uint16(50000)}},
		{"words", "seq:i,id:I,temp:f", map[string]any{"seq": int32(-70000), "id": uint32(4000000000), "temp": float32(21.5)}},
		{"quads", "ts:q,uid:Q,ratio:d", map[string]any{"ts": int64(-123456789), "uid": uint64(18000000000000000000), "ratio": 3.14159265}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			schema, err := ParseSchema(tc.format)
			require.NoError(t, err)

			packed, err := schema.Pack(tc.values)
			require.NoError(t, err)
			assert.Len(t, packed, schema.Size)

			unpacked, err := schema.Unpack(packed)
			require.NoError(t, err)
			for k, v := range tc.values {
				assert.Equal(t, v, unpacked[k])
			}
		})
	}
}

func TestSchemaPackMissingTagErrors(t *testing.T) {
	schema, err := ParseSchema("temp:f,voltage:H")
	require.NoError(t, err)

	_, err = schema.Pack(map[string]any{"temp": float32(1.0)})
	require.Error(t, err)
}

func TestSchemaUnpackWrongLengthErrors(t *testing.T) {
	schema, err := ParseSchema("temp:f")
	require.NoError(t, err)

	_, err = schema.Unpack([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseSchemaRejectsUnknownCode(t *testing.T) {
	_, err := ParseSchema("temp:z")
	require.Error(t, err)
}

func TestParseSchemaFieldOffsetsHaveNoPadding(t *testing.T) {
	schema, err := ParseSchema("a:b,b:I,c:H")
	require.NoError(t, err)
	require.Len(t, schema.Fields, 3)
	assert.Equal(t, 0, schema.Fields[0].Offset)
	assert.Equal(t, 1, schema.Fields[1].Offset)
	assert.Equal(t, 5, schema.Fields[2].Offset)
	assert.Equal(t, 7, schema.Size)
}
