package stream

import (
	"context"

	"stock-tracker/internal/models"
	"stock-tracker/internal/store"
)

// JournalConsumer records every dispatched event in the alert journal.
type JournalConsumer struct {
	journal store.AlertJournal
}

// NewJournalConsumer creates a JournalConsumer.
func NewJournalConsumer(journal store.AlertJournal) *JournalConsumer {
	return &JournalConsumer{journal: journal}
}

// Name implements Consumer.
func (j *JournalConsumer) Name() string { return "journal" }

// OnEvent implements Consumer.
func (j *JournalConsumer) OnEvent(ctx context.Context, ev models.AlertEvent) error {
	return j.journal.SaveAlert(ctx, ev)
}
