package domain

import (
	"errors"
	"testing"
)

func TestCanTransition_Table(t *testing.T) {
	all := []ItemStatus{ItemPending, ItemAIReady, ItemGenerating, ItemDone, ItemError}
	allowed := map[[2]ItemStatus]bool{
		{ItemPending, ItemAIReady}:    true,
		{ItemAIReady, ItemGenerating}: true,
		{ItemGenerating, ItemDone}:    true,
		{ItemGenerating, ItemError}:   true,
		{ItemError, ItemAIReady}:      true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ItemStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v; want %v", from, to, got, want)
			}
		}
	}
}

func TestCheckTransition_ErrorMatchesSentinel(t *testing.T) {
	err := CheckTransition(ItemDone, ItemAIReady)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.From != ItemDone || te.To != ItemAIReady {
		t.Fatalf("expected TransitionError DONE->AI_READY, got %#v", err)
	}
	if CheckTransition(ItemAIReady, ItemGenerating) != nil {
		t.Fatalf("claim edge must be allowed")
	}
}

func TestProjectOrderStatus(t *testing.T) {
	items := func(ss ...ItemStatus) []OrderItem {
		out := make([]OrderItem, len(ss))
		for i, s := range ss {
			out[i] = OrderItem{Status: s}
		}
		return out
	}
	cases := []struct {
		name   string
		closed bool
		items  []OrderItem
		want   OrderStatus
	}{
		{"empty", false, nil, OrderPending},
		{"closed wins over error", true, items(ItemError), OrderCompleted},
		{"worst is pending", false, items(ItemDone, ItemPending, ItemGenerating), OrderPending},
		{"error below generating", false, items(ItemGenerating, ItemError, ItemDone), OrderError},
		{"ai_ready below error", false, items(ItemError, ItemAIReady), OrderAIReady},
		{"all done", false, items(ItemDone, ItemDone), OrderDone},
	}
	for _, tc := range cases {
		if got := ProjectOrderStatus(tc.closed, tc.items); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestParseStatuses(t *testing.T) {
	if s, err := ParseItemStatus("GENERATING"); err != nil || s != ItemGenerating {
		t.Fatalf("ParseItemStatus: %v %v", s, err)
	}
	if _, err := ParseItemStatus("generating"); err == nil {
		t.Fatalf("statuses are case-sensitive")
	}
	if s, err := ParseOrderStatus("COMPLETED"); err != nil || s != OrderCompleted {
		t.Fatalf("ParseOrderStatus: %v %v", s, err)
	}
	if !ItemError.IsValid() || ItemStatus("X").IsValid() {
		t.Fatalf("IsValid mismatch")
	}
}

func TestCanTransitionTemplate(t *testing.T) {
	if !CanTransitionTemplate(TemplateNew, TemplateScanning) ||
		!CanTransitionTemplate(TemplateScanning, TemplateReady) ||
		!CanTransitionTemplate(TemplateReady, TemplateScanning) ||
		!CanTransitionTemplate(TemplateScanning, TemplateNew) {
		t.Fatalf("expected template edges to be allowed")
	}
	if CanTransitionTemplate(TemplateNew, TemplateReady) {
		t.Fatalf("NEW -> READY must go through SCANNING")
	}
}
