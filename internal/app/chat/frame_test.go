package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBareText(t *testing.T) {
	f, err := Decode([]byte("plain hello"))
	require.NoError(t, err)
	assert.Equal(t, "plain hello", f.Text)
	assert.Zero(t, f.Seq)
	assert.True(t, f.Time().IsZero())
}

func TestDecodeFrame(t *testing.T) {
	f, err := Decode([]byte(` {"seq":3,"text":"hi","sent_at":1700000000000}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, "hi", f.Text)
	assert.Equal(t, int64(1700000000000), f.Time().UnixMilli())
}

func TestDecodeBrokenFrame(t *testing.T) {
	_, err := Decode([]byte(`{"seq":`))
	assert.Error(t, err)
}
