// Notion API request and response shapes, Notion-Version 2022-06-28.
package services

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Property types used by database schemas.
const (
	PropTitle    = "title"
	PropRichText = "rich_text"
	PropNumber   = "number"
	PropDate     = "date"
	PropURL      = "url"
)

// maxTextLength is the Notion limit for one rich text content string.
const maxTextLength = 2000

// TextContent is the text payload of a rich text object.
type TextContent struct {
	Content string `json:"content"`
}

// RichText is a Notion rich text object.
type RichText struct {
	Type      string      `json:"type,omitempty"`
	Text      TextContent `json:"text"`
	PlainText string      `json:"plain_text,omitempty"`
}

// Text builds a single-element rich text array, truncated to the Notion content limit.
func Text(s string) []RichText {
	if utf8.RuneCountInString(s) > maxTextLength {
		s = string([]rune(s)[:maxTextLength])
	}
	return []RichText{{Type: "text", Text: TextContent{Content: s}}}
}

// Parent references the container of a new database or page.
type Parent struct {
	Type       string `json:"type,omitempty"`
	PageID     string `json:"page_id,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
}

// PageParent returns a page_id parent.
func PageParent(id string) Parent { return Parent{Type: "page_id", PageID: id} }

// DatabaseParent returns a database_id parent.
func DatabaseParent(id string) Parent { return Parent{DatabaseID: id} }

// PropertySchema declares one database column, e.g. {"rich_text": {}}.
type PropertySchema map[string]struct{}

// SchemaOf returns the declaration for a property of type kind.
func SchemaOf(kind string) PropertySchema { return PropertySchema{kind: {}} }

// PropertyValue is one page property value keyed by its type.
type PropertyValue map[string]any

// TitleValue sets a title property.
func TitleValue(s string) PropertyValue { return PropertyValue{PropTitle: Text(s)} }

// RichTextValue sets a rich text property.
func RichTextValue(s string) PropertyValue { return PropertyValue{PropRichText: Text(s)} }

// NumberValue sets a number property.
func NumberValue(f float64) PropertyValue { return PropertyValue{PropNumber: f} }

// DateValue sets a date property; an empty start clears it.
func DateValue(start string) PropertyValue {
	if start == "" {
		return PropertyValue{PropDate: nil}
	}
	return PropertyValue{PropDate: map[string]string{"start": start}}
}

// URLValue sets a url property; an empty url clears it.
func URLValue(u string) PropertyValue {
	if u == "" {
		return PropertyValue{PropURL: nil}
	}
	return PropertyValue{PropURL: u}
}

// CreateDatabaseRequest is the body of POST /v1/databases.
type CreateDatabaseRequest struct {
	Parent     Parent                    `json:"parent"`
	Title      []RichText                `json:"title"`
	Properties map[string]PropertySchema `json:"properties"`
}

// CreatePageRequest is the body of POST /v1/pages.
type CreatePageRequest struct {
	Parent     Parent                   `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
	Children   []Block                  `json:"children,omitempty"`
}

// Block is a content block. Only paragraphs are produced.
type Block struct {
	Object    string     `json:"object"`
	Type      string     `json:"type"`
	Paragraph *Paragraph `json:"paragraph,omitempty"`
}

// Paragraph is the payload of a paragraph block.
type Paragraph struct {
	RichText []RichText `json:"rich_text"`
}

// ParagraphBlock builds a paragraph block holding text.
func ParagraphBlock(text string) Block {
	return Block{Object: "block", Type: "paragraph", Paragraph: &Paragraph{RichText: Text(text)}}
}

// NotionDatabase is the subset of a database object cloudnote reads.
type NotionDatabase struct {
	Object string     `json:"object"`
	ID     string     `json:"id"`
	URL    string     `json:"url"`
	Title  []RichText `json:"title"`
}

// NotionPage is the subset of a page object cloudnote reads.
type NotionPage struct {
	Object     string                     `json:"object"`
	ID         string                     `json:"id"`
	URL        string                     `json:"url"`
	Properties map[string]json.RawMessage `json:"properties"`
}

// Title returns the plain text of the page's title property, or "" when it has none.
func (p NotionPage) Title() string {
	for _, raw := range p.Properties {
		var prop struct {
			Type  string     `json:"type"`
			Title []RichText `json:"title"`
		}
		if err := json.Unmarshal(raw, &prop); err != nil || prop.Type != PropTitle {
			continue
		}
		if len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
		return ""
	}
	return ""
}

// NotionUser is the response of GET /v1/users/me.
type NotionUser struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Bot    *struct {
		WorkspaceName string `json:"workspace_name"`
	} `json:"bot,omitempty"`
}

// WorkspaceName returns the bot's workspace, when present.
func (u NotionUser) WorkspaceName() string {
	if u.Bot == nil {
		return ""
	}
	return u.Bot.WorkspaceName
}

// TokenResponse is the OAuth token payload relayed to browser clients.
type TokenResponse struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type,omitempty"`
	BotID                string `json:"bot_id,omitempty"`
	WorkspaceID          string `json:"workspace_id,omitempty"`
	WorkspaceName        string `json:"workspace_name,omitempty"`
	WorkspaceIcon        string `json:"workspace_icon,omitempty"`
	DuplicatedTemplateID string `json:"duplicated_template_id,omitempty"`
	Owner                any    `json:"owner,omitempty"`
}

// NotionAPIError is a non-2xx response from the Notion API.
type NotionAPIError struct {
	Status  int
	Code    string
	Message string
	Body    string
}

func (e *NotionAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("notion: status %d: %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: status %d: %s", e.Status, e.Body)
}

// newNotionAPIError decodes the standard {object:"error", code, message} body.
func newNotionAPIError(status int, body []byte) *NotionAPIError {
	apiErr := &NotionAPIError{Status: status, Body: string(body)}

	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
	}
	return apiErr
}
