package response

import (
	"bytes"
	"encoding/json"
	"fmt"

	"illust_nest/internal/domain/models"
)

const CodeSuccess = 0

// Response is the envelope every JSON endpoint answers with. Code 0 is
// success, anything else is an application error whatever the HTTP status.
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r Response) OK() bool {
	return r.Code == CodeSuccess
}

// Err returns the application error carried by the envelope, or nil.
func (r Response) Err() error {
	if r.OK() {
		return nil
	}
	return &APIError{Code: r.Code, Message: r.Message}
}

// Decode unmarshals the data field into out. A null or empty data field
// leaves out untouched.
func (r Response) Decode(out any) error {
	if out == nil || isNull(r.Data) {
		return nil
	}
	if err := json.Unmarshal(r.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// DecodeList accepts both shapes the backend uses for lists: a bare array or
// an object with an items field (optionally with paging fields).
func DecodeList[T any](data json.RawMessage) (models.Page[T], error) {
	var page models.Page[T]
	if isNull(data) {
		page.Items = []T{}
		return page, nil
	}

	trimmed := bytes.TrimSpace(data)
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &page.Items); err != nil {
			return page, fmt.Errorf("decode list: %w", err)
		}
		page.Total = len(page.Items)
		return page, nil
	}

	if err := json.Unmarshal(trimmed, &page); err != nil {
		return page, fmt.Errorf("decode list: %w", err)
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
