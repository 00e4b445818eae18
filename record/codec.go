package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// payload is the JSON object stored under Key(id). The record id is not
// part of the blob; it comes from the key index.
type payload struct {
	Data          string          `json:"data"`
	Timestamp     int64           `json:"timestamp"`
	Contributor   string          `json:"contributor"`
	ModelUsage    int64           `json:"modelUsage"`
	RoyaltyAmount json.RawMessage `json:"royaltyAmount,omitempty"`
	Status        string          `json:"status"`
}

// Encode serializes r into the stored blob format.
func Encode(r Record) ([]byte, error) {
	amount := r.RoyaltyAmount
	if amount == "" {
		amount = "0"
	}
	rawAmount, err := json.Marshal(amount)
	if err != nil {
		return nil, fmt.Errorf("record: marshal royalty amount: %w", err)
	}
	status := r.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	data, err := json.Marshal(payload{
		Data:          r.EncryptedData,
		Timestamp:     r.Timestamp,
		Contributor:   r.Contributor,
		ModelUsage:    r.ModelUsage,
		RoyaltyAmount: rawAmount,
		Status:        string(status),
	})
	if err != nil {
		return nil, fmt.Errorf("record: marshal: %w", err)
	}
	return data, nil
}

// Decode parses a stored blob for the record with the given id.
//
// Optional members are defaulted rather than rejected: a missing modelUsage
// is 0, a missing or empty royaltyAmount is "0" and a missing or empty
// status is pending. Invalid JSON, a value other than an object, a
// non-integer timestamp or an unknown status is reported as
// ErrInvalidRecord.
func Decode(id string, blob []byte) (Record, error) {
	if id == "" {
		return Record{}, ErrEmptyID
	}
	if bytes.Equal(bytes.TrimSpace(blob), []byte("null")) {
		return Record{}, fmt.Errorf("%w: %s: not an object", ErrInvalidRecord, id)
	}
	var p payload
	if err := json.Unmarshal(blob, &p); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrInvalidRecord, id, err)
	}
	status, err := ParseStatus(p.Status)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrInvalidRecord, id, err)
	}
	amount, err := decodeAmount(p.RoyaltyAmount)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrInvalidRecord, id, err)
	}

	return Record{
		ID:            id,
		EncryptedData: p.Data,
		Timestamp:     p.Timestamp,
		Contributor:   p.Contributor,
		ModelUsage:    p.ModelUsage,
		RoyaltyAmount: amount,
		Status:        status,
	}, nil
}

// decodeAmount accepts the amount as a JSON string or a bare JSON number.
func decodeAmount(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "0", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "0", nil
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.New("royaltyAmount is neither string nor number")
	}
	return n.String(), nil
}

// MarkClaimed rewrites a stored blob with status set to claimed. Every other
// member of the stored object, including ones this package does not know
// about, is carried over unchanged.
func MarkClaimed(blob []byte) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(blob, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidRecord)
	}
	obj["status"] = json.RawMessage(`"` + string(StatusClaimed) + `"`)

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("record: marshal: %w", err)
	}
	return out, nil
}

// EncodeIndex serializes the key index as a JSON array.
func EncodeIndex(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("record: marshal index: %w", err)
	}
	return data, nil
}

// DecodeIndex parses the stored key index. An empty blob is an empty index.
func DecodeIndex(blob []byte) ([]string, error) {
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(blob, &ids); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	return ids, nil
}
