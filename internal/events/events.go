package events

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event types published on the bus.
const (
	TypeNotification = "notification"
	TypePluginAction = "plugin.action"
)

// NotificationOrganize marks a completed file-organization notification.
const NotificationOrganize = "Organize"

// ActionCloudUploadTest triggers the connectivity probe.
const ActionCloudUploadTest = "cloud_upload_test"

// Envelope is the opaque host event: a type tag plus a data object.
type Envelope struct {
	EventType string          `json:"event_type"`
	EventData json.RawMessage `json:"event_data,omitempty"`
}

// HasData reports whether the envelope carries a non-null data object.
func (e Envelope) HasData() bool {
	trimmed := bytes.TrimSpace(e.EventData)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Notification decodes the data object of a notification envelope.
// It returns nil without error when the envelope has no data. Malformed
// optional fields decode as nil; only data that is not a JSON object fails.
func (e Envelope) Notification() (*Notification, error) {
	if !e.HasData() {
		return nil, nil
	}
	var n Notification
	if err := json.Unmarshal(e.EventData, &n); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	return &n, nil
}

// PluginAction decodes the data object of a plugin.action envelope.
func (e Envelope) PluginAction() (*PluginAction, error) {
	if !e.HasData() {
		return nil, nil
	}
	var a PluginAction
	if err := json.Unmarshal(e.EventData, &a); err != nil {
		return nil, fmt.Errorf("decode plugin action: %w", err)
	}
	return &a, nil
}

// NewEnvelope marshals data into an envelope of the given type.
func NewEnvelope(eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return Envelope{EventType: eventType, EventData: raw}, nil
}

// PluginAction is the data of a plugin.action event.
type PluginAction struct {
	Action string `json:"action"`
}

// Notification is the data of a notification event. Organize notifications
// carry the metadata, media info and transfer result of the organized files.
type Notification struct {
	Type          string        `json:"type"`
	Meta          *Meta         `json:"meta,omitempty"`
	MediaInfo     *MediaInfo    `json:"mediainfo,omitempty"`
	TransferInfo  *TransferInfo `json:"transferinfo,omitempty"`
	SeasonEpisode *string       `json:"season_episode,omitempty"`
	Username      *string       `json:"username,omitempty"`
}

// Meta is the metadata recognized from the file name.
type Meta struct {
	Name        *string     `json:"name,omitempty"`
	CNName      *string     `json:"cn_name,omitempty"`
	Year        *FlexString `json:"year,omitempty"`
	Type        *string     `json:"type,omitempty"`
	BeginSeason *int        `json:"begin_season,omitempty"`
	EpisodeList []int       `json:"episode_list,omitempty"`
}

// MediaInfo is the identified show or movie.
type MediaInfo struct {
	Title       *string     `json:"title,omitempty"`
	Year        *FlexString `json:"year,omitempty"`
	Type        *string     `json:"type,omitempty"`
	TMDBID      *FlexInt    `json:"tmdb_id,omitempty"`
	IMDBID      *string     `json:"imdb_id,omitempty"`
	TVDBID      *FlexInt    `json:"tvdb_id,omitempty"`
	DoubanID    *FlexString `json:"douban_id,omitempty"`
	Category    *string     `json:"category,omitempty"`
	VoteAverage *float64    `json:"vote_average,omitempty"`
	Overview    *string     `json:"overview,omitempty"`
	Poster      *string     `json:"poster_path,omitempty"`
	Backdrop    *string     `json:"backdrop_path,omitempty"`
}

// TransferInfo is the outcome of moving files into the library.
type TransferInfo struct {
	Success       *bool     `json:"success,omitempty"`
	TargetItem    *FileItem `json:"target_item,omitempty"`
	TargetDirItem *FileItem `json:"target_diritem,omitempty"`
	FileListNew   []string  `json:"file_list_new,omitempty"`
	TotalSize     *int64    `json:"total_size,omitempty"`
	Message       *string   `json:"message,omitempty"`
}

// Succeeded reports the transfer success flag, treating an absent flag as success.
func (t *TransferInfo) Succeeded() bool {
	if t == nil || t.Success == nil {
		return true
	}
	return *t.Success
}

// TargetPath prefers the file target, then the directory target.
func (t *TransferInfo) TargetPath() string {
	if t == nil {
		return ""
	}
	if t.TargetItem != nil && t.TargetItem.Path != "" {
		return t.TargetItem.Path
	}
	if t.TargetDirItem != nil && t.TargetDirItem.Path != "" {
		return t.TargetDirItem.Path
	}
	return ""
}

// FileItem is a file or directory in host storage.
type FileItem struct {
	Path string `json:"path"`
}
