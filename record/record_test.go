package record

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "royalty_r1", Key("r1"))
	assert.Equal(t, "royalty_keys", IndexKey)
}

func TestIDFromKey(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{"royalty_r1", "r1", true},
		{"royalty_1700000000000-abc1234", "1700000000000-abc1234", true},
		{"royalty_keys", "", false},
		{"royalty_", "", false},
		{"other_r1", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, ok := IDFromKey(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)

	st, err = ParseStatus("claimed")
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, st)

	_, err = ParseStatus("paid")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestNew_Defaults(t *testing.T) {
	r := New("r1", "FHE-YWJj", "0xabc", 100)
	assert.Equal(t, int64(0), r.ModelUsage)
	assert.Equal(t, "0", r.RoyaltyAmount)
	assert.Equal(t, StatusPending, r.Status)
	assert.True(t, r.IsPending())
}

func TestClaimed_OnlyStatusChanges(t *testing.T) {
	r := Record{ID: "r1", EncryptedData: "x", Timestamp: 5, Contributor: "0xabc", ModelUsage: 7, RoyaltyAmount: "1.5", Status: StatusPending}
	c := r.Claimed()

	assert.Equal(t, StatusClaimed, c.Status)
	assert.Equal(t, StatusPending, r.Status, "original must not be mutated")
	r.Status = StatusClaimed
	assert.Equal(t, r, c)
}

func TestEncodeDecode(t *testing.T) {
	r := Record{ID: "r1", EncryptedData: "FHE-YWJj", Timestamp: 1700000000, Contributor: "0xabc", ModelUsage: 3, RoyaltyAmount: "0.25", Status: StatusClaimed}
	blob, err := Encode(r)
	require.NoError(t, err)

	got, err := Decode("r1", blob)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestEncode_WireShape(t *testing.T) {
	blob, err := Encode(New("r1", "FHE-YWJj", "0xabc", 100))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"data":"FHE-YWJj","timestamp":100,"contributor":"0xabc","modelUsage":0,"royaltyAmount":"0","status":"pending"}`,
		string(blob))
}

func TestEncode_InvalidStatus(t *testing.T) {
	_, err := Encode(Record{ID: "r1", Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDecode_TolerantDefaults(t *testing.T) {
	tests := []struct {
		name       string
		blob       string
		wantUsage  int64
		wantAmount string
		wantStatus Status
	}{
		{"all missing", `{"data":"d","timestamp":1,"contributor":"c"}`, 0, "0", StatusPending},
		{"empty strings", `{"data":"d","timestamp":1,"contributor":"c","royaltyAmount":"","status":""}`, 0, "0", StatusPending},
		{"nulls", `{"data":"d","timestamp":1,"contributor":"c","modelUsage":null,"royaltyAmount":null,"status":null}`, 0, "0", StatusPending},
		{"numeric amount", `{"data":"d","timestamp":1,"contributor":"c","modelUsage":4,"royaltyAmount":0.125}`, 4, "0.125", StatusPending},
		{"claimed", `{"data":"d","timestamp":1,"contributor":"c","status":"claimed"}`, 0, "0", StatusClaimed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decode("id", []byte(tt.blob))
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsage, r.ModelUsage)
			assert.Equal(t, tt.wantAmount, r.RoyaltyAmount)
			assert.Equal(t, tt.wantStatus, r.Status)
		})
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"not json", `not json`},
		{"array", `[1,2]`},
		{"null", `null`},
		{"padded null", " null\n"},
		{"string", `"FHE-YWJj"`},
		{"fractional timestamp", `{"data":"d","timestamp":1.5}`},
		{"unknown status", `{"data":"d","timestamp":1,"status":"paid"}`},
		{"object amount", `{"data":"d","timestamp":1,"royaltyAmount":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode("id", []byte(tt.blob))
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestDecode_EmptyID(t *testing.T) {
	_, err := Decode("", []byte(`{}`))
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestMarkClaimed_PreservesOtherMembers(t *testing.T) {
	blob := []byte(`{"data":"FHE-YWJj","timestamp":100,"contributor":"0xabc","modelUsage":2,"royaltyAmount":"0.5","status":"pending","extra":{"k":[1,2]}}`)

	out, err := MarkClaimed(blob)
	require.NoError(t, err)

	var before, after map[string]any
	require.NoError(t, json.Unmarshal(blob, &before))
	require.NoError(t, json.Unmarshal(out, &after))
	assert.Equal(t, "claimed", after["status"])
	delete(before, "status")
	delete(after, "status")
	assert.Equal(t, before, after)
}

func TestMarkClaimed_AlreadyClaimed(t *testing.T) {
	blob := []byte(`{"data":"d","timestamp":1,"status":"claimed"}`)
	out, err := MarkClaimed(blob)
	require.NoError(t, err)

	r, err := Decode("id", out)
	require.NoError(t, err)
	assert.Equal(t, StatusClaimed, r.Status)
}

func TestMarkClaimed_Invalid(t *testing.T) {
	for _, blob := range []string{"", "null", "[]", "garbage"} {
		_, err := MarkClaimed([]byte(blob))
		assert.ErrorIs(t, err, ErrInvalidRecord, "blob %q", blob)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	ids := []string{"r1", "r2", "r3"}
	blob, err := EncodeIndex(ids)
	require.NoError(t, err)
	assert.Equal(t, `["r1","r2","r3"]`, string(blob))

	got, err := DecodeIndex(blob)
	require.NoError(t, err)
	assert.Equal(t, ids, got)
}

func TestEncodeIndex_Nil(t *testing.T) {
	blob, err := EncodeIndex(nil)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(blob))
}

func TestDecodeIndex_EmptyAndMalformed(t *testing.T) {
	ids, err := DecodeIndex(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = DecodeIndex([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = DecodeIndex([]byte(`{"a":1}`))
	assert.ErrorIs(t, err, ErrInvalidIndex)

	_, err = DecodeIndex([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidIndex)
}

func TestNewID_Format(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewID(now)
	assert.Regexp(t, regexp.MustCompile(`^1700000000123-[0-9a-z]{7}$`), id)
}

func TestNewID_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID(now)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
