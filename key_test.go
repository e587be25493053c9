package pak

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pak/testutil"
)

func TestParseKey(t *testing.T) {
	t.Parallel()

	raw := []byte(testKey)
	hexKey := hex.EncodeToString(raw)

	tests := []struct {
		name    string
		in      string
		want    Key
		wantErr bool
	}{
		{name: "empty", in: "", want: nil},
		{name: "whitespace only", in: "  \n", want: nil},
		{name: "hex", in: hexKey, want: testKey},
		{name: "upper hex with prefix", in: "0X" + strings.ToUpper(hexKey), want: testKey},
		{name: "hex with prefix and newline", in: "0x" + hexKey + "\n", want: testKey},
		{name: "base64", in: base64.StdEncoding.EncodeToString(raw), want: testKey},
		{name: "short hex", in: hexKey[:62], wantErr: true},
		{name: "bad hex digit", in: "zz" + hexKey[2:], wantErr: true},
		{name: "short base64", in: base64.StdEncoding.EncodeToString(raw[:16]), wantErr: true},
		{name: "garbage", in: "not a key", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseKey(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyStringRedacted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<none>", Key(nil).String())
	s := fmt.Sprintf("%v %s", testKey, testKey)
	assert.NotContains(t, s, "42")
	assert.Contains(t, s, "<redacted>")
}

func TestOpenMalformedKey(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, sampleFiles())
	_, err := New(testutil.NewMockByteSource(data), Key{1, 2, 3})
	require.ErrorIs(t, err, ErrMalformedKey)
}
