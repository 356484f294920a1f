package repository

import (
	"context"
	"testing"

	"mediascore/internal/models"
	"mediascore/internal/testutil"
)

func TestNotifyAndList(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)
	fixtures := testutil.SetupFixtures(t, containers.DB)

	repo := NewNotificationRepository(containers.DB)
	ctx := context.Background()

	report := fixtures.CreateReport(t, 1, "skoring-publikasi-media", models.StatusQueued)

	notifications := []models.Notification{
		{UserID: 1, Type: models.NotifyProcessingStarted, Title: "Started", Message: "m1", RelatedReportID: &report.ID},
		{UserID: 1, Type: models.NotifyAwaitingApproval, Title: "Pending", Message: "m2", RelatedReportID: &report.ID},
		{UserID: 2, Type: models.NotifyProcessingStarted, Title: "Other user", Message: "m3"},
	}
	for _, n := range notifications {
		if err := repo.Notify(ctx, n); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	mine, err := repo.ListByUser(ctx, 1, 50)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("Expected 2 notifications for user 1, got %d", len(mine))
	}
	// Newest first
	if mine[0].Type != models.NotifyAwaitingApproval {
		t.Errorf("Expected newest notification first, got %s", mine[0].Type)
	}
	if mine[0].RelatedReportID == nil || *mine[0].RelatedReportID != report.ID {
		t.Errorf("Notification should reference its report, got %v", mine[0].RelatedReportID)
	}
}

func TestMarkReadScopedToUser(t *testing.T) {
	containers := testutil.SetupTestContainers(t)
	defer containers.Cleanup(t)

	repo := NewNotificationRepository(containers.DB)
	ctx := context.Background()

	if err := repo.Notify(ctx, models.Notification{
		UserID: 1, Type: models.NotifyApproved, Title: "Approved", Message: "m",
	}); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	list, err := repo.ListByUser(ctx, 1, 50)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	id := list[0].ID

	// Another user cannot mark it
	if err := repo.MarkRead(ctx, id, 2); err == nil {
		t.Error("Marking another user's notification should fail")
	}

	if err := repo.MarkRead(ctx, id, 1); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	list, _ = repo.ListByUser(ctx, 1, 50)
	if !list[0].IsRead {
		t.Error("Notification should be marked read")
	}
}
