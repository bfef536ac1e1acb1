package events

import (
	"bytes"
	"encoding/json"
)

// Organize notifications come from a host whose field types drift between
// versions. Each field is decoded on its own so one malformed value nulls
// only that field.

type fields map[string]json.RawMessage

func objectFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// optional decodes key into a new T, or returns nil when the key is absent,
// null or does not decode.
func optional[T any](f fields, key string) *T {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// list decodes a JSON array element by element and drops elements that do
// not decode. A non-array value yields nil.
func list[T any](f fields, key string) []T {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func stringValue(f fields, key string) string {
	if s := optional[string](f, key); s != nil {
		return *s
	}
	return ""
}

func (n *Notification) UnmarshalJSON(data []byte) error {
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*n = Notification{
		Type:          stringValue(f, "type"),
		Meta:          optional[Meta](f, "meta"),
		MediaInfo:     optional[MediaInfo](f, "mediainfo"),
		TransferInfo:  optional[TransferInfo](f, "transferinfo"),
		SeasonEpisode: optional[string](f, "season_episode"),
		Username:      optional[string](f, "username"),
	}
	return nil
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*m = Meta{
		Name:        optional[string](f, "name"),
		CNName:      optional[string](f, "cn_name"),
		Year:        optional[FlexString](f, "year"),
		Type:        optional[string](f, "type"),
		BeginSeason: optional[FlexInt](f, "begin_season").IntPtr(),
	}
	if episodes := list[FlexInt](f, "episode_list"); episodes != nil {
		m.EpisodeList = make([]int, len(episodes))
		for i, e := range episodes {
			m.EpisodeList[i] = int(e)
		}
	}
	return nil
}

func (m *MediaInfo) UnmarshalJSON(data []byte) error {
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*m = MediaInfo{
		Title:       optional[string](f, "title"),
		Year:        optional[FlexString](f, "year"),
		Type:        optional[string](f, "type"),
		TMDBID:      optional[FlexInt](f, "tmdb_id"),
		IMDBID:      optional[string](f, "imdb_id"),
		TVDBID:      optional[FlexInt](f, "tvdb_id"),
		DoubanID:    optional[FlexString](f, "douban_id"),
		Category:    optional[string](f, "category"),
		VoteAverage: optional[float64](f, "vote_average"),
		Overview:    optional[string](f, "overview"),
		Poster:      optional[string](f, "poster_path"),
		Backdrop:    optional[string](f, "backdrop_path"),
	}
	return nil
}

func (t *TransferInfo) UnmarshalJSON(data []byte) error {
	f, err := objectFields(data)
	if err != nil {
		return err
	}
	*t = TransferInfo{
		TargetItem:    optional[FileItem](f, "target_item"),
		TargetDirItem: optional[FileItem](f, "target_diritem"),
		FileListNew:   list[string](f, "file_list_new"),
		TotalSize:     optional[FlexInt](f, "total_size").Int64Ptr(),
		Message:       optional[string](f, "message"),
	}
	if ok := optional[FlexBool](f, "success"); ok != nil {
		v := bool(*ok)
		t.Success = &v
	}
	return nil
}

// PeekType returns the "type" member of a notification's data without
// decoding the rest, reading tokens only as far as needed. It lets callers
// classify data that is too broken to decode.
func PeekType(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", false
	}
	for {
		key, err := dec.Token()
		if err != nil {
			return "", false
		}
		name, ok := key.(string)
		if !ok {
			return "", false
		}
		if name == "type" {
			val, err := dec.Token()
			if err != nil {
				return "", false
			}
			s, ok := val.(string)
			return s, ok
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", false
		}
	}
}
