package tasks

import (
	"github.com/desertthunder/cloudnote/internal/models"
	"github.com/desertthunder/cloudnote/internal/services"
)

// Database column names.
const (
	ColumnName         = "歌曲名"
	ColumnArtist       = "歌手"
	ColumnAlbum        = "专辑"
	ColumnPlayCount    = "播放次数"
	ColumnScore        = "评分"
	ColumnPublishDate  = "发布日期"
	ColumnDuration     = "时长"
	ColumnVIP          = "VIP歌曲"
	ColumnPurchased    = "已购买"
	ColumnCover        = "封面"
	ColumnVideoURL     = "MV链接"
	ColumnTotalMinutes = "累计听歌时间(分钟)"
)

// DefaultTitle is the database title used when the caller does not pick one.
func DefaultTitle(uid string) string {
	return "网易云听歌记录 - " + uid
}

// DatabaseSchema returns the fixed twelve-column schema of an import database.
func DatabaseSchema() map[string]services.PropertySchema {
	return map[string]services.PropertySchema{
		ColumnName:         services.SchemaOf(services.PropTitle),
		ColumnArtist:       services.SchemaOf(services.PropRichText),
		ColumnAlbum:        services.SchemaOf(services.PropRichText),
		ColumnPlayCount:    services.SchemaOf(services.PropNumber),
		ColumnScore:        services.SchemaOf(services.PropNumber),
		ColumnPublishDate:  services.SchemaOf(services.PropDate),
		ColumnDuration:     services.SchemaOf(services.PropRichText),
		ColumnVIP:          services.SchemaOf(services.PropRichText),
		ColumnPurchased:    services.SchemaOf(services.PropRichText),
		ColumnCover:        services.SchemaOf(services.PropURL),
		ColumnVideoURL:     services.SchemaOf(services.PropURL),
		ColumnTotalMinutes: services.SchemaOf(services.PropNumber),
	}
}

// DatabaseRequest builds the create-database body for a database under parentPageID.
func DatabaseRequest(parentPageID, title string) services.CreateDatabaseRequest {
	return services.CreateDatabaseRequest{
		Parent:     services.PageParent(parentPageID),
		Title:      services.Text(title),
		Properties: DatabaseSchema(),
	}
}

// PageProperties maps a record onto the schema columns one to one.
func PageProperties(rec models.NormalizedRecord) map[string]services.PropertyValue {
	date := rec.PublishDate
	if date == UnknownDate {
		date = ""
	}

	return map[string]services.PropertyValue{
		ColumnName:         services.TitleValue(rec.Name),
		ColumnArtist:       services.RichTextValue(rec.Artist),
		ColumnAlbum:        services.RichTextValue(rec.Album),
		ColumnPlayCount:    services.NumberValue(float64(rec.PlayCount)),
		ColumnScore:        services.NumberValue(float64(rec.Score)),
		ColumnPublishDate:  services.DateValue(date),
		ColumnDuration:     services.RichTextValue(rec.Duration),
		ColumnVIP:          services.RichTextValue(rec.VIP),
		ColumnPurchased:    services.RichTextValue(rec.Purchased),
		ColumnCover:        services.URLValue(rec.Cover),
		ColumnVideoURL:     services.URLValue(rec.VideoURL),
		ColumnTotalMinutes: services.NumberValue(rec.TotalMinutes),
	}
}
