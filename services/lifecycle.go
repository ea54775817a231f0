package services

import (
	"context"
	"time"

	"mediaserver/broadcast"
	"mediaserver/logger"
	"mediaserver/metrics"
	"mediaserver/store"
	"mediaserver/types"
)

// RecordStore is the part of the store the services depend on
type RecordStore interface {
	Insert(ctx context.Context, url string, mediaType types.MediaType, startTime string) (int64, error)
	Finalize(ctx context.Context, id int64, title *string, endTime string) error
	UpdateFields(ctx context.Context, id int64, u store.Update) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*types.DownloadRecord, error)
	ListAll(ctx context.Context) ([]types.DownloadRecord, error)
}

// Lifecycle keeps record mutations and their events in lockstep: an event
// is announced only after the store accepted the change.
type Lifecycle struct {
	store   RecordStore
	hub     broadcast.Announcer
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLifecycle wires a lifecycle manager
func NewLifecycle(s RecordStore, hub broadcast.Announcer, log logger.Logger, m *metrics.Metrics) *Lifecycle {
	if log == nil {
		log = logger.NewNop()
	}
	return &Lifecycle{store: s, hub: hub, log: log, metrics: m, now: time.Now}
}

// StartRecord inserts an in-flight shell record and announces CREATE
func (l *Lifecycle) StartRecord(ctx context.Context, url string, mediaType types.MediaType) (int64, error) {
	startTime := types.FormatTime(l.now())
	id, err := l.store.Insert(ctx, url, mediaType, startTime)
	if err != nil {
		l.metrics.StoreError("insert")
		l.log.Error("Failed to create download record", logger.String("url", url), logger.Error(err))
		return 0, err
	}

	l.hub.Announce(types.NewCreateEvent(id, url, mediaType, startTime))
	return id, nil
}

// FinalizeRecord stamps the end time and title and announces UPDATE
func (l *Lifecycle) FinalizeRecord(ctx context.Context, id int64, title *string) error {
	endTime := types.FormatTime(l.now())
	if err := l.store.Finalize(ctx, id, title, endTime); err != nil {
		l.metrics.StoreError("finalize")
		l.log.Error("Failed to finalize download record", logger.Int64("id", id), logger.Error(err))
		return err
	}

	l.hub.Announce(types.NewUpdateEvent(id, title, endTime))
	return nil
}

// ReportProgress announces PROGRESS without touching the store
func (l *Lifecycle) ReportProgress(id int64, current, total int) {
	l.hub.Announce(types.NewProgressEvent(id, current, total))
}
