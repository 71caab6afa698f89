// package formatter renders normalized listening records as JSON, CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/shared"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every format accepted by [Export].
var Formats = []string{FormatJSON, FormatCSV, FormatMarkdown, FormatText}

var csvHeaders = []string{
	"Name", "Artist", "Album", "Play Count", "Score", "Publish Date",
	"Duration", "VIP", "Purchased", "Cover", "MV", "Total Minutes",
}

// ExportToCSV writes one row per record under a header row, matching the Notion column order
func ExportToCSV(records []models.NormalizedRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range records {
		row := []string{
			r.Name,
			r.Artist,
			r.Album,
			strconv.Itoa(r.PlayCount),
			strconv.Itoa(r.Score),
			r.PublishDate,
			r.Duration,
			r.VIP,
			r.Purchased,
			r.Cover,
			r.VideoURL,
			strconv.FormatFloat(r.TotalMinutes, 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToMarkdown renders a titled table of records
func ExportToMarkdown(title string, records []models.NormalizedRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Records**: %d\n", len(records))
	fmt.Fprintf(&buf, "**Total Minutes**: %.2f\n\n", totalMinutes(records))

	buf.WriteString("| # | Name | Artist | Album | Plays | Duration | Published | VIP | MV |\n")
	buf.WriteString("|---|------|--------|-------|-------|----------|-----------|-----|----|\n")
	for i, r := range records {
		mv := ""
		if r.VideoURL != "" {
			mv = fmt.Sprintf("[link](%s)", r.VideoURL)
		}
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %d | %s | %s | %s | %s |\n",
			i+1, cell(r.Name), cell(r.Artist), cell(r.Album), r.PlayCount, r.Duration, r.PublishDate, r.VIP, mv)
	}
	return buf.Bytes(), nil
}

// ExportToText lists records one per line
func ExportToText(title string, records []models.NormalizedRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", title)
	fmt.Fprintf(&buf, "Records: %d\n\n", len(records))

	for i, r := range records {
		fmt.Fprintf(&buf, "%d. %s - %s [%s] x%d\n", i+1, r.Artist, r.Name, r.Duration, r.PlayCount)
	}
	return buf.Bytes(), nil
}

// Export renders records in format.
func Export(format, title string, records []models.NormalizedRecord) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(records)
	case FormatMarkdown:
		return ExportToMarkdown(title, records)
	case FormatText:
		return ExportToText(title, records)
	case FormatJSON, "":
		if records == nil {
			records = []models.NormalizedRecord{}
		}
		return shared.MarshalJSON(records, true)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders records and writes them to path.
//
// An empty path defaults to {base}.{ext} where ext follows the format.
func WriteExport(format, title, base string, records []models.NormalizedRecord, path string) (string, error) {
	if format == "" {
		format = FormatJSON
	}
	if !slices.Contains(Formats, format) {
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	if path == "" {
		path = base + "." + Extension(format)
	}

	data, err := Export(format, title, records)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return "md"
	case FormatCSV, FormatText:
		return format
	default:
		return "json"
	}
}

func totalMinutes(records []models.NormalizedRecord) float64 {
	var total float64
	for _, r := range records {
		total += r.TotalMinutes
	}
	return total
}

// cell escapes pipes so a value cannot break the table.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
