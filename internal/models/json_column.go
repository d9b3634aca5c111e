package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// columnBytes normalizes a JSON column value read from the driver.
// It returns nil for NULL, empty and literal "null" payloads.
func columnBytes(typeName string, value interface{}) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	var raw string
	switch v := value.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return nil, fmt.Errorf("models.%s: unsupported Scan type %T", typeName, value)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	return []byte(raw), nil
}

// ExternalLinks stores the ordered link list as a JSON array.
type ExternalLinks []ExternalLink

func (l ExternalLinks) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]ExternalLink(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *ExternalLinks) Scan(value interface{}) error {
	if l == nil {
		return fmt.Errorf("models.ExternalLinks: Scan on nil pointer")
	}
	raw, err := columnBytes("ExternalLinks", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*l = ExternalLinks{}
		return nil
	}
	var items []ExternalLink
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("models.ExternalLinks: %w", err)
	}
	*l = items
	return nil
}

// Attachments stores the ordered image list as a JSON array.
type Attachments []Attachment

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Attachment(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Attachments) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.Attachments: Scan on nil pointer")
	}
	raw, err := columnBytes("Attachments", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*a = Attachments{}
		return nil
	}
	var items []Attachment
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("models.Attachments: %w", err)
	}
	*a = items
	return nil
}

func (p PendingUpdate) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PendingUpdate) Scan(value interface{}) error {
	if p == nil {
		return fmt.Errorf("models.PendingUpdate: Scan on nil pointer")
	}
	raw, err := columnBytes("PendingUpdate", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*p = PendingUpdate{}
		return nil
	}
	var next PendingUpdate
	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("models.PendingUpdate: %w", err)
	}
	*p = next
	return nil
}

func (d HistoryData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *HistoryData) Scan(value interface{}) error {
	if d == nil {
		return fmt.Errorf("models.HistoryData: Scan on nil pointer")
	}
	raw, err := columnBytes("HistoryData", value)
	if err != nil {
		return err
	}
	if raw == nil {
		*d = HistoryData{}
		return nil
	}
	var next HistoryData
	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("models.HistoryData: %w", err)
	}
	*d = next
	return nil
}
