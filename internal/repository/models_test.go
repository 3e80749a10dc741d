package repository

import (
	"testing"
	"time"

	"github.com/kursadbilgin/outreach-dispatch/internal/domain"
)

func TestQueueItemModelToDomain(t *testing.T) {
	t.Parallel()

	projectID := "3f1b0c3e-7d7a-4c55-9a55-0b7c8f0e1a11"
	state := "UT"
	created := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	item := queueItemModelToDomain(&QueueItemModel{
		ID:             "q-1",
		RecipientEmail: "jane@example.com",
		EmailSubject:   "Hello",
		EmailBody:      "Hi Jane,",
		ProjectID:      &projectID,
		PriorityScore:  80,
		Status:         domain.ItemStatusPending,
		Metadata:       domain.Metadata{domain.MetadataAssetLink: "https://x.example.com"},
		CreatedAt:      created,
	}, &state)

	if item.Subject != "Hello" || item.Body != "Hi Jane," {
		t.Fatalf("subject/body not mapped: %+v", item)
	}
	if item.Jurisdiction != "UT" {
		t.Fatalf("Jurisdiction = %q, want UT", item.Jurisdiction)
	}
	if item.ProjectIDValue() != projectID {
		t.Fatalf("ProjectID = %q", item.ProjectIDValue())
	}
	if item.Metadata.String(domain.MetadataAssetLink) != "https://x.example.com" {
		t.Fatal("metadata not mapped")
	}
	if !item.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v", item.CreatedAt)
	}

	noProject := queueItemModelToDomain(&QueueItemModel{ID: "q-2"}, nil)
	if noProject.Jurisdiction != "" {
		t.Fatalf("Jurisdiction = %q, want empty", noProject.Jurisdiction)
	}
	if queueItemModelToDomain(nil, nil) != nil {
		t.Fatal("nil model should map to nil")
	}
}

func TestActivityModelRoundTrip(t *testing.T) {
	t.Parallel()

	queueID := "q-1"
	record := &domain.ActivityRecord{
		ID:             "a-1",
		OrganizationID: "org-1",
		QueueItemID:    &queueID,
		RecipientEmail: "jane@example.com",
		ActivityType:   domain.ChannelEmail,
		Subject:        "Hello",
		MessageBody:    "Hi Jane,",
		Status:         domain.ActivityStatusPending,
		Metadata:       domain.Metadata{domain.MetaForced: true},
	}

	model := activityModelFromDomain(record)
	if model.OrganizationID == nil || *model.OrganizationID != "org-1" {
		t.Fatalf("OrganizationID = %v", model.OrganizationID)
	}

	back := activityModelToDomain(model)
	if back.OrganizationID != "org-1" || back.Status != domain.ActivityStatusPending {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if back.QueueItemID == nil || *back.QueueItemID != "q-1" {
		t.Fatal("queue item id lost")
	}

	record.OrganizationID = ""
	if activityModelFromDomain(record).OrganizationID != nil {
		t.Fatal("empty organization id should be stored as NULL")
	}
}

func TestTableNames(t *testing.T) {
	t.Parallel()

	if (QueueItemModel{}).TableName() != "outreach_queue" ||
		(ProjectModel{}).TableName() != "projects" ||
		(ActivityModel{}).TableName() != "outreach_activities" {
		t.Fatal("unexpected table names")
	}
}
