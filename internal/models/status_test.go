package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusFailed, OrderStatusPending, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCanceled, false},
		{OrderStatusDelivered, OrderStatusCanceled, false},
		{OrderStatusCanceled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestEditableAndCancelable(t *testing.T) {
	if !OrderStatusPending.Editable() {
		t.Error("Pending orders should be editable")
	}
	if OrderStatusPaid.Editable() {
		t.Error("Paid orders should not be editable")
	}
	if !OrderStatusPaid.Cancelable() {
		t.Error("Paid orders should be cancelable")
	}
	if OrderStatusDelivered.Cancelable() {
		t.Error("Delivered orders should not be cancelable")
	}
	if OrderStatus("lost").Valid() {
		t.Error("Unknown status should be invalid")
	}
}
