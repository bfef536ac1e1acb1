package payload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"cloudpush/internal/events"
	"cloudpush/internal/logging"
	"cloudpush/internal/services"
	"cloudpush/internal/state"
)

// UnknownType is sent when neither media info nor meta carries a type.
const UnknownType = "unknown"

// Payload is the flat record pushed to the uploader. Nullable fields encode as null.
type Payload struct {
	TransferHistoryID *int64   `json:"transferHistoryId"`
	Title             string   `json:"title"`
	Year              string   `json:"year"`
	Type              string   `json:"type"`
	Season            *int     `json:"season"`
	Episode           []int    `json:"episode"`
	SeasonEpisode     *string  `json:"seasonEpisode"`
	TMDBID            *int     `json:"tmdbId"`
	IMDBID            *string  `json:"imdbId"`
	TVDBID            *int     `json:"tvdbId"`
	DoubanID          *string  `json:"doubanId"`
	TargetPath        string   `json:"targetPath"`
	FileList          []string `json:"fileList"`
	FileSize          int64    `json:"fileSize"`
	FileCount         int      `json:"fileCount"`
	Success           bool     `json:"success"`
	Message           string   `json:"message"`
	Username          *string  `json:"username"`
	Timestamp         string   `json:"timestamp"`
	Category          *string  `json:"category"`
	VoteAverage       *float64 `json:"voteAverage"`
	Overview          *string  `json:"overview"`
	Poster            *string  `json:"poster"`
	Backdrop          *string  `json:"backdrop"`
}

// Input groups the parts of an organize notification the builder reads.
type Input struct {
	Meta          *events.Meta
	MediaInfo     *events.MediaInfo
	TransferInfo  *events.TransferInfo
	SeasonEpisode *string
	Username      *string
}

// InputFromNotification extracts builder input from a decoded notification.
func InputFromNotification(n *events.Notification) Input {
	if n == nil {
		return Input{}
	}
	return Input{
		Meta:          n.Meta,
		MediaInfo:     n.MediaInfo,
		TransferInfo:  n.TransferInfo,
		SeasonEpisode: n.SeasonEpisode,
		Username:      n.Username,
	}
}

// HistoryLookup resolves transfer-history records by destination path.
type HistoryLookup interface {
	TransferHistoryByDest(ctx context.Context, dest string) (*state.TransferHistoryRecord, error)
}

// Builder maps organize notifications onto payloads.
type Builder struct {
	history HistoryLookup
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Builder.
type Option func(*Builder)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder constructs a Builder. history may be nil, in which case
// transferHistoryId is always null.
func NewBuilder(history HistoryLookup, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		history: history,
		now:     time.Now,
		logger:  logging.NewComponentLogger(logger, "payload"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build derives every payload field independently; a missing source leaves
// its field null or empty.
func (b *Builder) Build(ctx context.Context, in Input) Payload {
	meta, media, transfer := in.Meta, in.MediaInfo, in.TransferInfo

	fileList := []string{}
	if transfer != nil && len(transfer.FileListNew) > 0 {
		fileList = append(fileList, transfer.FileListNew...)
	}
	targetPath := transfer.TargetPath()

	p := Payload{
		Title:         normalizeText(title(meta, media)),
		Year:          year(meta, media),
		Type:          mediaType(meta, media),
		SeasonEpisode: in.SeasonEpisode,
		TargetPath:    targetPath,
		FileList:      fileList,
		FileCount:     len(fileList),
		Success:       transfer.Succeeded(),
		Username:      in.Username,
		Timestamp:     b.now().Format(time.RFC3339Nano),
	}

	if meta != nil {
		p.Season = meta.BeginSeason
		if meta.EpisodeList != nil {
			p.Episode = append([]int{}, meta.EpisodeList...)
		}
	}

	if media != nil {
		p.TMDBID = media.TMDBID.IntPtr()
		p.IMDBID = media.IMDBID
		p.TVDBID = media.TVDBID.IntPtr()
		if media.DoubanID != nil {
			douban := media.DoubanID.String()
			p.DoubanID = &douban
		}
		p.Category = media.Category
		p.VoteAverage = media.VoteAverage
		if media.Overview != nil {
			overview := normalizeText(*media.Overview)
			p.Overview = &overview
		}
		p.Poster = media.Poster
		p.Backdrop = media.Backdrop
	}

	if transfer != nil {
		if transfer.TotalSize != nil {
			p.FileSize = *transfer.TotalSize
		}
		if transfer.Message != nil {
			p.Message = normalizeText(*transfer.Message)
		}
	}

	p.TransferHistoryID = b.lookupHistory(ctx, targetPath)
	return p
}

func (b *Builder) lookupHistory(ctx context.Context, targetPath string) *int64 {
	if b.history == nil || targetPath == "" {
		return nil
	}
	rec, err := b.history.TransferHistoryByDest(ctx, targetPath)
	if err != nil {
		logger := logging.WithContext(ctx, b.logger)
		if errors.Is(err, services.ErrNotFound) {
			logger.Debug("no transfer history for target", logging.TargetPath(targetPath))
		} else {
			logging.WarnWithContext(logger, "transfer history lookup failed", "history_lookup",
				logging.TargetPath(targetPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "payload sent without transferHistoryId"),
			)
		}
		return nil
	}
	if rec == nil {
		return nil
	}
	id := rec.ID
	return &id
}

func title(meta *events.Meta, media *events.MediaInfo) string {
	if media != nil && media.Title != nil {
		return *media.Title
	}
	if meta != nil && meta.Name != nil {
		return *meta.Name
	}
	return ""
}

func year(meta *events.Meta, media *events.MediaInfo) string {
	if media != nil && media.Year.String() != "" {
		return media.Year.String()
	}
	if meta != nil {
		return meta.Year.String()
	}
	return ""
}

func mediaType(meta *events.Meta, media *events.MediaInfo) string {
	if media != nil && media.Type != nil && *media.Type != "" {
		return *media.Type
	}
	if meta != nil && meta.Type != nil && *meta.Type != "" {
		return *meta.Type
	}
	return UnknownType
}

func normalizeText(s string) string {
	return norm.NFC.String(s)
}
