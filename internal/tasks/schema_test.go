package tasks

import (
	"encoding/json"
	"testing"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/services"
)

func TestDatabaseSchema(t *testing.T) {
	schema := DatabaseSchema()
	want := map[string]string{
		"歌曲名":        services.PropTitle,
		"歌手":         services.PropRichText,
		"专辑":         services.PropRichText,
		"播放次数":       services.PropNumber,
		"评分":         services.PropNumber,
		"发布日期":       services.PropDate,
		"时长":         services.PropRichText,
		"VIP歌曲":      services.PropRichText,
		"已购买":        services.PropRichText,
		"封面":         services.PropURL,
		"MV链接":       services.PropURL,
		"累计听歌时间(分钟)": services.PropNumber,
	}

	if len(schema) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(schema))
	}
	for name, kind := range want {
		prop, ok := schema[name]
		if !ok {
			t.Errorf("missing column %s", name)
			continue
		}
		if _, ok := prop[kind]; !ok || len(prop) != 1 {
			t.Errorf("column %s: expected %s, got %v", name, kind, prop)
		}
	}
}

func TestDatabaseRequest(t *testing.T) {
	req := DatabaseRequest("page-1", DefaultTitle("32953014"))

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var body struct {
		Parent struct {
			Type   string `json:"type"`
			PageID string `json:"page_id"`
		} `json:"parent"`
		Title []struct {
			Text struct {
				Content string `json:"content"`
			} `json:"text"`
		} `json:"title"`
		Properties map[string]map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if body.Parent.Type != "page_id" || body.Parent.PageID != "page-1" {
		t.Errorf("unexpected parent %+v", body.Parent)
	}
	if body.Title[0].Text.Content != "网易云听歌记录 - 32953014" {
		t.Errorf("unexpected title %q", body.Title[0].Text.Content)
	}
	if _, ok := body.Properties["歌曲名"]["title"]; !ok {
		t.Errorf("expected title column, got %v", body.Properties["歌曲名"])
	}
}

func TestPageProperties(t *testing.T) {
	t.Run("Maps Every Column", func(t *testing.T) {
		rec := models.NormalizedRecord{
			Name:         "晴天",
			Artist:       "周杰伦",
			Album:        "叶惠美",
			Cover:        "http://cover",
			PlayCount:    10,
			Score:        100,
			PublishDate:  "2003-07-31",
			Duration:     "4:29",
			VIP:          "是",
			Purchased:    "否",
			VideoURL:     "https://music.163.com/mv?id=1",
			TotalMinutes: 44.83,
		}

		props := PageProperties(rec)
		if len(props) != 12 {
			t.Fatalf("expected 12 properties, got %d", len(props))
		}

		data, _ := json.Marshal(props)
		var decoded map[string]map[string]json.RawMessage
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		checks := map[string]string{
			"播放次数":       `10`,
			"评分":         `100`,
			"累计听歌时间(分钟)": `44.83`,
			"封面":         `"http://cover"`,
			"MV链接":       `"https://music.163.com/mv?id=1"`,
			"发布日期":       `{"start":"2003-07-31"}`,
		}
		for col, want := range checks {
			var got json.RawMessage
			for _, v := range decoded[col] {
				got = v
			}
			if string(got) != want {
				t.Errorf("column %s: expected %s, got %s", col, want, got)
			}
		}
	})

	t.Run("Sentinels Become Null", func(t *testing.T) {
		props := PageProperties(models.NormalizedRecord{PublishDate: UnknownDate})

		data, _ := json.Marshal(props)
		var decoded map[string]map[string]json.RawMessage
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		for col, key := range map[string]string{"发布日期": "date", "封面": "url", "MV链接": "url"} {
			if got := string(decoded[col][key]); got != "null" {
				t.Errorf("column %s: expected null, got %s", col, got)
			}
		}
	})
}
