package domain

import (
	"errors"
	"fmt"
)

// ItemStatus is the lifecycle state of an OrderItem.
type ItemStatus string

const (
	ItemPending    ItemStatus = "PENDING"
	ItemAIReady    ItemStatus = "AI_READY"
	ItemGenerating ItemStatus = "GENERATING"
	ItemDone       ItemStatus = "DONE"
	ItemError      ItemStatus = "ERROR"
)

var validItemStatuses = []ItemStatus{ItemPending, ItemAIReady, ItemGenerating, ItemDone, ItemError}

// String implements fmt.Stringer.
func (s ItemStatus) String() string { return string(s) }

// IsValid reports whether the value is a known ItemStatus.
func (s ItemStatus) IsValid() bool {
	for _, c := range validItemStatuses {
		if c == s {
			return true
		}
	}
	return false
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(v string) (ItemStatus, error) {
	for _, c := range validItemStatuses {
		if string(c) == v {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", v)
}

// itemEdges is the complete transition table. ERROR -> AI_READY is the only
// backward edge (operator reset).
var itemEdges = map[ItemStatus][]ItemStatus{
	ItemPending:    {ItemAIReady},
	ItemAIReady:    {ItemGenerating},
	ItemGenerating: {ItemDone, ItemError},
	ItemError:      {ItemAIReady},
}

// CanTransition reports whether from -> to is an allowed item edge.
func CanTransition(from, to ItemStatus) bool {
	for _, next := range itemEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is the sentinel matched by every TransitionError.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError describes a refused status edge.
type TransitionError struct {
	From   ItemStatus
	To     ItemStatus
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidTransition) true for any TransitionError.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// CheckTransition returns a *TransitionError when from -> to is not allowed.
func CheckTransition(from, to ItemStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// OrderStatus is the display projection of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderAIReady    OrderStatus = "AI_READY"
	OrderError      OrderStatus = "ERROR"
	OrderGenerating OrderStatus = "GENERATING"
	OrderDone       OrderStatus = "DONE"
	OrderCompleted  OrderStatus = "COMPLETED"
)

// displayRank orders item statuses from "worst" to "best" for projection.
var displayRank = map[ItemStatus]int{
	ItemPending:    0,
	ItemAIReady:    1,
	ItemError:      2,
	ItemGenerating: 3,
	ItemDone:       4,
}

// ProjectOrderStatus derives the display status of an order. A closed order
// is COMPLETED no matter what its items say; otherwise the worst item status
// wins. An order without items is PENDING.
func ProjectOrderStatus(closed bool, items []OrderItem) OrderStatus {
	if closed {
		return OrderCompleted
	}
	if len(items) == 0 {
		return OrderPending
	}
	worst := items[0].Status
	for _, it := range items[1:] {
		if displayRank[it.Status] < displayRank[worst] {
			worst = it.Status
		}
	}
	return OrderStatus(worst)
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(v string) (OrderStatus, error) {
	switch s := OrderStatus(v); s {
	case OrderPending, OrderAIReady, OrderError, OrderGenerating, OrderDone, OrderCompleted:
		return s, nil
	}
	return "", fmt.Errorf("invalid order status %q", v)
}

// TemplateStatus is the lifecycle state of a TemplateConfig.
type TemplateStatus string

const (
	TemplateNew      TemplateStatus = "NEW"
	TemplateScanning TemplateStatus = "SCANNING"
	TemplateReady    TemplateStatus = "READY"
)

var templateEdges = map[TemplateStatus][]TemplateStatus{
	TemplateNew:      {TemplateScanning},
	TemplateScanning: {TemplateReady, TemplateNew},
	TemplateReady:    {TemplateScanning},
}

// CanTransitionTemplate reports whether from -> to is an allowed template edge.
func CanTransitionTemplate(from, to TemplateStatus) bool {
	for _, next := range templateEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}
