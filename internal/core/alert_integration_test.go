package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/CrewChiefSteve/ccs-operations-sub001/internal/core"
)

func TestAlertLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	alerts := core.NewAlertService(pool)

	created, err := alerts.CreateManual(ctx, core.ManualAlertInput{
		Type:     "quality_hold",
		Severity: core.SeverityWarning,
		Title:    "Reflow oven temperature drift",
		Message:  "profile 2 running 8C hot",
	})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	if created.Status != core.AlertActive {
		t.Fatalf("new alert must be active, got %s", created.Status)
	}
	if created.IsSystem {
		t.Error("manual alerts must not be system alerts")
	}

	acked, err := alerts.Acknowledge(ctx, created.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if acked.Status != core.AlertAcknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("want acknowledged with a timestamp, got %s / %v", acked.Status, acked.AcknowledgedAt)
	}

	// Acknowledging twice is illegal.
	_, err = alerts.Acknowledge(ctx, created.ID)
	var badTransition *core.InvalidTransitionError
	if !errors.As(err, &badTransition) {
		t.Fatalf("expected InvalidTransitionError on double acknowledge, got %v", err)
	}
	if badTransition.From != string(core.AlertAcknowledged) {
		t.Errorf("transition error From = %s, want acknowledged", badTransition.From)
	}

	resolved, err := alerts.Resolve(ctx, created.ID, "recalibrated oven")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Status != core.AlertResolved || resolved.ResolvedAt == nil {
		t.Errorf("want resolved with a timestamp, got %s / %v", resolved.Status, resolved.ResolvedAt)
	}
	if resolved.Message == nil || !strings.Contains(*resolved.Message, "recalibrated oven") {
		t.Errorf("resolution note must be appended to the message, got %v", resolved.Message)
	}

	// Resolved is terminal.
	if _, err := alerts.Dismiss(ctx, created.ID); !errors.As(err, &badTransition) {
		t.Errorf("expected InvalidTransitionError dismissing a resolved alert, got %v", err)
	}
}

func TestAlertDismissFromActive(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	alerts := core.NewAlertService(pool)

	created, err := alerts.CreateManual(ctx, core.ManualAlertInput{
		Type:     "note",
		Severity: core.SeverityInfo,
		Title:    "Vendor price list updated",
	})
	if err != nil {
		t.Fatalf("CreateManual: %v", err)
	}
	dismissed, err := alerts.Dismiss(ctx, created.ID)
	if err != nil {
		t.Fatalf("Dismiss: %v", err)
	}
	if dismissed.Status != core.AlertDismissed {
		t.Errorf("want dismissed, got %s", dismissed.Status)
	}

	active := core.AlertActive
	list, err := alerts.List(ctx, &active)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("dismissed alert still listed as active: %+v", list)
	}
}

func TestAlertGetUnknown(t *testing.T) {
	pool := setupTestDB(t)
	alerts := core.NewAlertService(pool)

	_, err := alerts.Get(context.Background(), 999999)
	if !core.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown alert, got %v", err)
	}
}
