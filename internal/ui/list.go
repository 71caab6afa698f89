package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/cloudnote/internal/models"
)

var _ list.Item = recordItem{}

// recordItem wraps [models.NormalizedRecord] to implement [list.Item].
type recordItem struct {
	index  int
	record models.NormalizedRecord
}

func (i recordItem) FilterValue() string { return i.record.Name + " " + i.record.Artist }
func (i recordItem) Title() string {
	return fmt.Sprintf("%d. %s - %s", i.index+1, i.record.Artist, i.record.Name)
}
func (i recordItem) Description() string {
	desc := fmt.Sprintf("%s • %d plays", i.record.Duration, i.record.PlayCount)
	if i.record.Album != "" {
		desc = fmt.Sprintf("%s • %s", i.record.Album, desc)
	}
	return desc
}

func recordItems(records []models.NormalizedRecord) []list.Item {
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = recordItem{index: i, record: r}
	}
	return items
}
