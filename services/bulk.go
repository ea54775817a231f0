package services

import (
	"context"
	"errors"
	"fmt"

	"mediaserver/broadcast"
	"mediaserver/logger"
	"mediaserver/metrics"
	"mediaserver/store"
	"mediaserver/types"
)

const (
	errNoFields       = "No fields to update"
	errInvalidMedia   = "Invalid mediaType: %s"
	errEditNotFound   = "ID not found in database"
	errDeleteNotFound = "Record ID not found"
)

// BulkService applies edits and deletes item by item. One item failing
// never affects the others.
type BulkService interface {
	Edit(ctx context.Context, items []types.EditItem) []types.ItemResult
	Delete(ctx context.Context, ids []int64) []types.ItemResult
}

type bulkService struct {
	store   RecordStore
	hub     broadcast.Announcer
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewBulkService wires the bulk mutation handler
func NewBulkService(s RecordStore, hub broadcast.Announcer, log logger.Logger, m *metrics.Metrics) BulkService {
	if log == nil {
		log = logger.NewNop()
	}
	return &bulkService{store: s, hub: hub, log: log, metrics: m}
}

func succeeded(id int64) types.ItemResult {
	return types.ItemResult{ID: &id, Status: true}
}

func failed(id *int64, msg string) types.ItemResult {
	return types.ItemResult{ID: id, Error: types.StringPtr(msg)}
}

// Edit validates and applies every item, returning results in input order
func (b *bulkService) Edit(ctx context.Context, items []types.EditItem) []types.ItemResult {
	results := make([]types.ItemResult, 0, len(items))
	for _, item := range items {
		result := b.editOne(ctx, item)
		b.metrics.BulkItem("edit", result.Status)
		results = append(results, result)
	}
	return results
}

func (b *bulkService) editOne(ctx context.Context, item types.EditItem) types.ItemResult {
	if item.Invalid != "" {
		return failed(item.ID, item.Invalid)
	}
	if item.ID == nil {
		return failed(nil, types.MsgMissingID)
	}
	if !item.HasFields() {
		return failed(item.ID, errNoFields)
	}

	update, msg := buildUpdate(item)
	if msg != "" {
		return failed(item.ID, msg)
	}

	id := *item.ID
	if err := b.store.UpdateFields(ctx, id, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failed(item.ID, errEditNotFound)
		}
		b.metrics.StoreError("update")
		b.log.Error("Bulk edit failed", logger.Int64("id", id), logger.Error(err))
		return failed(item.ID, err.Error())
	}

	b.announceEdit(ctx, id)
	return succeeded(id)
}

func buildUpdate(item types.EditItem) (store.Update, string) {
	update := store.Update{Title: item.Title}
	if item.MediaType.Set {
		update.MediaType = types.Field[types.MediaType]{Set: true, Null: item.MediaType.Null}
		if !item.MediaType.Null {
			mediaType, err := types.ParseMediaType(item.MediaType.Value)
			if err != nil {
				return store.Update{}, fmt.Sprintf(errInvalidMedia, item.MediaType.Value)
			}
			update.MediaType.Value = mediaType
		}
	}
	return update, ""
}

// announceEdit broadcasts the row as stored after an edit
func (b *bulkService) announceEdit(ctx context.Context, id int64) {
	record, err := b.store.Get(ctx, id)
	if err != nil {
		b.log.Warn("Edited record could not be reloaded", logger.Int64("id", id), logger.Error(err))
		return
	}
	mediaType := record.MediaType
	b.hub.Announce(types.Event{
		Type: types.EventUpdate,
		Data: types.UpdatePayload{ID: id, Title: record.Title, MediaType: &mediaType},
	})
}

// Delete removes each distinct id once, returning results in first-seen order
func (b *bulkService) Delete(ctx context.Context, ids []int64) []types.ItemResult {
	unique := make(map[int64]struct{}, len(ids))
	results := make([]types.ItemResult, 0, len(ids))

	for _, id := range ids {
		if _, dup := unique[id]; dup {
			continue
		}
		unique[id] = struct{}{}

		result := b.deleteOne(ctx, id)
		b.metrics.BulkItem("delete", result.Status)
		results = append(results, result)
	}
	return results
}

func (b *bulkService) deleteOne(ctx context.Context, id int64) types.ItemResult {
	if err := b.store.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failed(&id, errDeleteNotFound)
		}
		b.metrics.StoreError("delete")
		b.log.Error("Bulk delete failed", logger.Int64("id", id), logger.Error(err))
		return failed(&id, err.Error())
	}

	b.hub.Announce(types.NewDeleteEvent(id))
	return succeeded(id)
}
