package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string seconds", in: `"3s"`, want: 3 * time.Second},
		{name: "string millis", in: `"1500ms"`, want: 1500 * time.Millisecond},
		{name: "integer nanoseconds", in: `2000000000`, want: 2 * time.Second},
		{name: "garbage string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
		{name: "broken json", in: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 250 * time.Millisecond})
	require.NoError(t, err)
	assert.JSONEq(t, `"250ms"`, string(b))
}

func TestNowMillis_Monotonic(t *testing.T) {
	a := NowMillis()
	b := NowMillis()
	assert.GreaterOrEqual(t, b, a)
	assert.Greater(t, a, int64(1_600_000_000_000))
}
