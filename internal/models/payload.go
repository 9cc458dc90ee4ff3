package models

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrMalformedData is returned when "data" is present but not a JSON array.
var ErrMalformedData = errors.New("data must be an array")

// UploadPayload is the body the companion app posts for one metric batch.
type UploadPayload struct {
	Type string          `json:"type"`
	Data stdjson.RawMessage `json:"data"`
}

// Items decodes the batch into records. Elements that are not JSON objects
// are skipped and counted rather than failing the batch.
func (p *UploadPayload) Items() (records []Record, skipped int, err error) {
	trimmed := bytes.TrimSpace(p.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, 0, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}

	records = make([]Record, 0, len(raw))
	for _, item := range raw {
		rec, ok := DecodeRecord(item)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// Len returns the number of elements in the batch, valid or not.
func (p *UploadPayload) Len() int {
	var raw []json.RawMessage
	if err := json.Unmarshal(p.Data, &raw); err != nil {
		return 0
	}
	return len(raw)
}

// DecodeRecord decodes a single JSON object, keeping numbers as json.Number.
func DecodeRecord(data []byte) (Record, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return nil, false
	}
	return rec, true
}
