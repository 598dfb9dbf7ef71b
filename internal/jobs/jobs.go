// Package jobs defines the wire contract between the coordinator and its
// workers: the job descriptors returned by GET /jobs, and the claim and
// report request bodies.
//
// A descriptor is a closed sum type with two variants, OrderBatch and
// TemplateScan. On the wire both carry a "type" discriminator; Decode and
// List.UnmarshalJSON turn that back into the right Go type.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates job descriptors.
type Kind string

const (
	KindOrderBatch   Kind = "ORDER_BATCH"
	KindTemplateScan Kind = "TEMPLATE_SCAN"
)

// IsValid reports whether k is a known job kind.
func (k Kind) IsValid() bool { return k == KindOrderBatch || k == KindTemplateScan }

// Descriptor is one unit of claimed work. Only OrderBatch and TemplateScan
// implement it.
type Descriptor interface {
	Kind() Kind
	JobID() string
	isDescriptor()
}

// BatchItem is one item of an order batch, with its field map already
// translated to design layer names.
type BatchItem struct {
	ID             string            `json:"id"`
	ProductName    string            `json:"productName"`
	TemplateKey    string            `json:"templateKey,omitempty"`
	TemplateFolder string            `json:"templateFolder,omitempty"`
	MasterFile     string            `json:"masterFile,omitempty"`
	Quantity       int               `json:"quantity"`
	Fields         map[string]string `json:"fields"`
}

// OrderBatch is an order whose items are GENERATING. The job ID is the
// order ID.
type OrderBatch struct {
	ID             string      `json:"id"`
	OrderID        string      `json:"orderId"`
	ExternalNumber string      `json:"externalNumber"`
	CustomerName   string      `json:"customerName"`
	Items          []BatchItem `json:"items"`
}

func (OrderBatch) Kind() Kind      { return KindOrderBatch }
func (b OrderBatch) JobID() string { return b.ID }
func (OrderBatch) isDescriptor()   {}

// MarshalJSON adds the type discriminator.
func (b OrderBatch) MarshalJSON() ([]byte, error) {
	type plain OrderBatch
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{KindOrderBatch, plain(b)})
}

// TemplateScan is a template whose status is SCANNING. The job ID is the
// template key.
type TemplateScan struct {
	ID          string `json:"id"`
	TemplateKey string `json:"templateKey"`
	FolderPath  string `json:"folderPath"`
}

func (TemplateScan) Kind() Kind      { return KindTemplateScan }
func (s TemplateScan) JobID() string { return s.ID }
func (TemplateScan) isDescriptor()   {}

// MarshalJSON adds the type discriminator.
func (s TemplateScan) MarshalJSON() ([]byte, error) {
	type plain TemplateScan
	return json.Marshal(struct {
		Type Kind `json:"type"`
		plain
	}{KindTemplateScan, plain(s)})
}

// ErrUnknownKind is returned when a descriptor carries an unknown type.
var ErrUnknownKind = errors.New("unknown job type")

// Decode parses one descriptor from its JSON form.
func Decode(raw []byte) (Descriptor, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case KindOrderBatch:
		var b OrderBatch
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case KindTemplateScan:
		var s TemplateScan
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, head.Type)
	}
}

// List is the GET /jobs response body.
type List struct {
	Jobs []Descriptor `json:"jobs"`
}

// UnmarshalJSON decodes each element through Decode.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw struct {
		Jobs []json.RawMessage `json:"jobs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Jobs = make([]Descriptor, 0, len(raw.Jobs))
	for i, r := range raw.Jobs {
		d, err := Decode(r)
		if err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		l.Jobs = append(l.Jobs, d)
	}
	return nil
}
