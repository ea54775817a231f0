package types

// EventType names a live update pushed to dashboard viewers
type EventType string

const (
	EventCreate   EventType = "CREATE"
	EventUpdate   EventType = "UPDATE"
	EventProgress EventType = "PROGRESS"
	EventDelete   EventType = "DELETE"
)

// Event is a broadcast message. It is never stored.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// CreatePayload announces a new shell record
type CreatePayload struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	MediaType MediaType `json:"mediaType"`
	StartTime string    `json:"startTime"`
}

// UpdatePayload announces a finalized record or a bulk edit.
// EndTime is set on finalize; MediaType is set on edits that change it.
type UpdatePayload struct {
	ID        int64      `json:"id"`
	Title     *string    `json:"title"`
	EndTime   string     `json:"endTime,omitempty"`
	MediaType *MediaType `json:"mediaType,omitempty"`
}

// ProgressPayload reports how far a batch has advanced
type ProgressPayload struct {
	ID      int64 `json:"id"`
	Current int   `json:"current"`
	Total   int   `json:"total"`
}

// DeletePayload announces a removed record
type DeletePayload struct {
	ID int64 `json:"id"`
}

// NewCreateEvent builds a CREATE event for a freshly inserted record
func NewCreateEvent(id int64, url string, mediaType MediaType, startTime string) Event {
	return Event{Type: EventCreate, Data: CreatePayload{ID: id, URL: url, MediaType: mediaType, StartTime: startTime}}
}

// NewUpdateEvent builds an UPDATE event for a finalized record
func NewUpdateEvent(id int64, title *string, endTime string) Event {
	return Event{Type: EventUpdate, Data: UpdatePayload{ID: id, Title: title, EndTime: endTime}}
}

// NewProgressEvent builds a PROGRESS event
func NewProgressEvent(id int64, current, total int) Event {
	return Event{Type: EventProgress, Data: ProgressPayload{ID: id, Current: current, Total: total}}
}

// NewDeleteEvent builds a DELETE event
func NewDeleteEvent(id int64) Event {
	return Event{Type: EventDelete, Data: DeletePayload{ID: id}}
}
