package models

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// SourceRecord is one entry of a user's listening history.
type SourceRecord struct {
	PlayCount int  `json:"playCount"`
	Score     int  `json:"score"`
	Song      Song `json:"song"`
}

// Song is the track half of a [SourceRecord]. Optional fields are zero when absent.
type Song struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Artists     []Artist   `json:"ar"`
	Album       Album      `json:"al"`
	DurationMS  int64      `json:"dt"`
	PublishTime int64      `json:"publishTime"` // milliseconds since the epoch
	Fee         int        `json:"fee"`         // > 0 marks a VIP track
	MV          int64      `json:"mv"`          // music video id, 0 when none
	Privilege   *Privilege `json:"privilege,omitempty"`
}

// Artist is a credited performer.
type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Album holds the album name and cover.
type Album struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	PicURL string `json:"picUrl"`
}

// Privilege carries purchase state for the listening account.
type Privilege struct {
	Payed int `json:"payed"`
}

// NormalizedRecord is a [SourceRecord] flattened into the twelve Notion columns.
type NormalizedRecord struct {
	Name         string  `json:"name"`
	Artist       string  `json:"artist"`
	Album        string  `json:"album"`
	Cover        string  `json:"cover"`
	PlayCount    int     `json:"play_count"`
	Score        int     `json:"score"`
	PublishDate  string  `json:"publish_date"`
	Duration     string  `json:"duration"`
	VIP          string  `json:"vip"`
	Purchased    string  `json:"purchased"`
	VideoURL     string  `json:"video_url"`
	TotalMinutes float64 `json:"total_minutes"`
}

// UnmarshalJSON decodes a history entry. Fields of the wrong type are left at their zero value.
func (r *SourceRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		PlayCount json.RawMessage `json:"playCount"`
		Score     json.RawMessage `json:"score"`
		Song      json.RawMessage `json:"song"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SourceRecord{PlayCount: int(looseInt(raw.PlayCount)), Score: int(looseInt(raw.Score))}
	if song, ok := looseDecode[Song](raw.Song); ok {
		r.Song = song
	}
	return nil
}

// UnmarshalJSON decodes a song, zeroing malformed optional fields instead of failing.
func (s *Song) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          json.RawMessage `json:"id"`
		Name        json.RawMessage `json:"name"`
		Artists     json.RawMessage `json:"ar"`
		Album       json.RawMessage `json:"al"`
		DurationMS  json.RawMessage `json:"dt"`
		PublishTime json.RawMessage `json:"publishTime"`
		Fee         json.RawMessage `json:"fee"`
		MV          json.RawMessage `json:"mv"`
		Privilege   json.RawMessage `json:"privilege"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Song{
		ID:          looseInt(raw.ID),
		DurationMS:  looseInt(raw.DurationMS),
		PublishTime: looseInt(raw.PublishTime),
		Fee:         int(looseInt(raw.Fee)),
		MV:          looseInt(raw.MV),
	}
	s.Name, _ = looseDecode[string](raw.Name)
	s.Album, _ = looseDecode[Album](raw.Album)

	if items, ok := looseDecode[[]json.RawMessage](raw.Artists); ok {
		for _, item := range items {
			if a, ok := looseDecode[Artist](item); ok {
				s.Artists = append(s.Artists, a)
			}
		}
	}
	if p, ok := looseDecode[Privilege](raw.Privilege); ok {
		s.Privilege = &p
	}
	return nil
}

// looseDecode decodes raw into a T, reporting false for absent, null or mistyped values.
func looseDecode[T any](raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

// looseInt reads an integer from a JSON number or a numeric string, and 0 from anything else.
func looseInt(raw json.RawMessage) int64 {
	if n, ok := looseDecode[int64](raw); ok {
		return n
	}
	if f, ok := looseDecode[float64](raw); ok {
		return int64(f)
	}
	if str, ok := looseDecode[string](raw); ok {
		if n, err := strconv.ParseInt(str, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
