package tasks

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/desertthunder/cloudnote/internal/models"
)

// UnknownDate replaces a publish date that is absent or out of range.
const UnknownDate = "unknown date"

// MVBaseURL prefixes a song's music video id.
const MVBaseURL = "https://music.163.com/mv?id="

const (
	yes = "是"
	no  = "否"
)

// Transform normalizes every record, preserving order. The result always has len(records) entries.
func Transform(records []models.SourceRecord) []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(records))
	for i, rec := range records {
		out[i] = TransformRecord(rec)
	}
	return out
}

// TransformRecord flattens one listening record. It never fails; bad optional fields fall back to defaults.
func TransformRecord(rec models.SourceRecord) models.NormalizedRecord {
	song := rec.Song

	names := make([]string, 0, len(song.Artists))
	for _, a := range song.Artists {
		names = append(names, a.Name)
	}

	purchased := no
	if song.Privilege != nil && song.Privilege.Payed > 0 {
		purchased = yes
	}

	vip := no
	if song.Fee > 0 {
		vip = yes
	}

	var video string
	if song.MV != 0 {
		video = fmt.Sprintf("%s%d", MVBaseURL, song.MV)
	}

	return models.NormalizedRecord{
		Name:         song.Name,
		Artist:       strings.Join(names, " / "),
		Album:        song.Album.Name,
		Cover:        song.Album.PicURL,
		PlayCount:    rec.PlayCount,
		Score:        rec.Score,
		PublishDate:  FormatPublishDate(song.PublishTime),
		Duration:     FormatDuration(song.DurationMS),
		VIP:          vip,
		Purchased:    purchased,
		VideoURL:     video,
		TotalMinutes: TotalMinutes(rec.PlayCount, song.DurationMS),
	}
}

// FormatDuration renders milliseconds as M:SS.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%d:%02d", ms/60000, (ms%60000)/1000)
}

// FormatPublishDate renders an epoch millisecond timestamp as a UTC YYYY-MM-DD date, or [UnknownDate].
func FormatPublishDate(ms int64) string {
	if ms <= 0 {
		return UnknownDate
	}

	t := time.UnixMilli(ms).UTC()
	if y := t.Year(); y < 1 || y > 9999 {
		return UnknownDate
	}
	return t.Format(time.DateOnly)
}

// TotalMinutes is playCount × duration in minutes, rounded to two decimals.
func TotalMinutes(playCount int, ms int64) float64 {
	if ms < 0 {
		ms = 0
	}
	minutes := float64(playCount) * float64(ms) / 1000 / 60
	return math.Round(minutes*100) / 100
}
