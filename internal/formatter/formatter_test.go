package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/shared"
	th "github.com/desertthunder/cloudnote/internal/testing"
)

func sampleRecords() []models.NormalizedRecord {
	return []models.NormalizedRecord{
		{
			Name:         "晴天",
			Artist:       "周杰伦",
			Album:        "叶惠美",
			Cover:        "http://p1.music.126.net/a.jpg",
			PlayCount:    10,
			Score:        100,
			PublishDate:  "2003-07-31",
			Duration:     "4:29",
			VIP:          "是",
			Purchased:    "否",
			VideoURL:     "https://music.163.com/mv?id=504177",
			TotalMinutes: 44.83,
		},
		{
			Name:         "A | B",
			Artist:       "X / Y",
			PlayCount:    1,
			PublishDate:  "unknown date",
			Duration:     "3:00",
			VIP:          "否",
			Purchased:    "否",
			TotalMinutes: 3,
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleRecords())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(rows) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(rows))
		}
		if strings.Join(rows[0], ",") != strings.Join(csvHeaders, ",") {
			t.Errorf("unexpected headers %v", rows[0])
		}
		if rows[1][0] != "晴天" || rows[1][3] != "10" || rows[1][11] != "44.83" {
			t.Errorf("unexpected first row %v", rows[1])
		}
		if rows[2][11] != "3.00" || rows[2][10] != "" {
			t.Errorf("unexpected second row %v", rows[2])
		}
	})

	t.Run("ExportToCSV Empty", func(t *testing.T) {
		data, err := ExportToCSV(nil)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected only the header row, got %q", data)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown("网易云听歌记录 - 1", sampleRecords())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		expected := []string{
			"# 网易云听歌记录 - 1",
			"**Records**: 2",
			"**Total Minutes**: 47.83",
			"| 1 | 晴天 | 周杰伦 | 叶惠美 | 10 | 4:29 | 2003-07-31 | 是 | [link](https://music.163.com/mv?id=504177) |",
			`| 2 | A \| B | X / Y |`,
		}
		for _, want := range expected {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q\n%s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, _ := ExportToText("History", sampleRecords())
		if !strings.Contains(string(data), "1. 周杰伦 - 晴天 [4:29] x10") {
			t.Errorf("unexpected text output %s", data)
		}
	})

	t.Run("Export JSON", func(t *testing.T) {
		data, err := Export(FormatJSON, "", sampleRecords())
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		var decoded []map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded[0]["total_minutes"] != 44.83 || decoded[1]["publish_date"] != "unknown date" {
			t.Errorf("unexpected JSON %s", data)
		}

		empty, _ := Export(FormatJSON, "", nil)
		if strings.TrimSpace(string(empty)) != "[]" {
			t.Errorf("expected empty array, got %s", empty)
		}
	})

	t.Run("Export Unknown Format", func(t *testing.T) {
		if _, err := Export("xml", "", nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWriteExport(t *testing.T) {
	t.Run("Default Path Per Format", func(t *testing.T) {
		dir := t.TempDir()
		base := filepath.Join(dir, "history_1")

		for format, ext := range map[string]string{FormatJSON: "json", FormatCSV: "csv", FormatMarkdown: "md", FormatText: "txt"} {
			path, err := WriteExport(format, "History", base, sampleRecords(), "")
			if err != nil {
				t.Fatalf("%s: WriteExport failed: %v", format, err)
			}
			if path != base+"."+ext {
				t.Errorf("%s: expected %s, got %s", format, base+"."+ext, path)
			}
			th.AssertFileExists(t, path)
		}
	})

	t.Run("Explicit Path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")
		got, err := WriteExport(FormatCSV, "", "ignored", sampleRecords(), path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
		if !strings.Contains(th.MustReadFile(t, path), "晴天") {
			t.Error("expected record in file")
		}
	})

	t.Run("Unwritable Path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "out.json")
		if _, err := WriteExport(FormatJSON, "", "", nil, path); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("Unknown Format", func(t *testing.T) {
		if _, err := WriteExport("yaml", "", "x", nil, ""); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
