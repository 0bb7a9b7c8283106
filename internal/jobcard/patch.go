package jobcard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/phoenix-garage/garage/internal/platform/httpx"
)

// ParsePatch decodes raw JSON into a JobPatch. totalAmount is rejected with a field error
// instead of the generic unknown-field message; other unknown fields are malformed input.
func ParsePatch(raw []byte) (JobPatch, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return JobPatch{}, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
	}
	if _, ok := probe["totalAmount"]; ok {
		return JobPatch{}, ErrTotalAmountReadOnly
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var patch JobPatch
	if err := dec.Decode(&patch); err != nil {
		return JobPatch{}, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
	}
	return patch, nil
}

// DecodePatch reads a JobPatch from the request body.
func DecodePatch(r *http.Request) (JobPatch, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return JobPatch{}, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err)
	}
	return ParsePatch(raw)
}
