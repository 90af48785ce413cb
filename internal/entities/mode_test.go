package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMode_UnlabeledIsZeroValue(t *testing.T) {
	t.Parallel()

	var m Mode
	assert.Equal(t, Unlabeled, m)
	assert.False(t, m.IsLabeled())
	assert.Equal(t, Unlabeled, Labeled("  "))

	label, ok := Labeled("walk\r").Label()
	assert.True(t, ok)
	assert.Equal(t, "walk", label)
}

func TestMode_SQLBoundary(t *testing.T) {
	t.Parallel()

	v, err := Unlabeled.Value()
	require.NoError(t, err)
	assert.Equal(t, "", v, "unlabeled must be stored as empty string, not NULL")

	tests := []struct {
		name string
		src  any
		want Mode
	}{
		{"null", nil, Unlabeled},
		{"empty", "", Unlabeled},
		{"string", "bus", Labeled("bus")},
		{"bytes", []byte("taxi"), Labeled("taxi")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var m Mode
			require.NoError(t, m.Scan(tt.src))
			assert.Equal(t, tt.want, m)
		})
	}

	var m Mode
	assert.Error(t, m.Scan(42))
}

func TestMode_BSONBoundary(t *testing.T) {
	t.Parallel()

	type doc struct {
		Mode Mode `bson:"transportation_mode"`
	}

	raw, err := bson.Marshal(doc{Mode: Unlabeled})
	require.NoError(t, err)
	assert.Equal(t, "", bson.Raw(raw).Lookup("transportation_mode").StringValue())

	var decoded doc
	raw, err = bson.Marshal(bson.M{"transportation_mode": "subway"})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, Labeled("subway"), decoded.Mode)
}
