// Package templates holds the HTML views of the label generator as templ
// components. The *_templ.go files are generated from the .templ sources.
package templates

//go:generate templ generate

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/labelqr/internal/core"
)

// Status kinds.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Status is the banner shown above the sheet after an action.
type Status struct {
	Kind    string
	Message string
	Action  string
	Code    string
}

// Success returns a success banner.
func Success(format string, args ...any) *Status {
	return &Status{Kind: StatusSuccess, Message: fmt.Sprintf(format, args...)}
}

// Failure returns an error banner for msg.
func Failure(msg core.UserMessage) *Status {
	return &Status{Kind: StatusError, Message: msg.Message, Action: msg.Action, Code: msg.Code}
}

// PageData is everything the main page shows.
type PageData struct {
	Input    string
	Settings core.Settings
	MaxSize  int
	FileName string
	Sheet    *core.Sheet
	Status   *Status
}

var levelOptions = []struct {
	Level core.ECCLevel
	Name  string
}{
	{core.ECCLow, "L (7%)"},
	{core.ECCMedium, "M (15%)"},
	{core.ECCQuartile, "Q (25%)"},
	{core.ECCHigh, "H (30%)"},
}

var layoutOptions = []struct {
	Mode core.LayoutMode
	Name string
}{
	{core.LayoutTable, "Table"},
	{core.LayoutCards, "Cards"},
}

func dataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// labelURL is the download link of the label PNG for item i of a saved sheet.
func labelURL(sheetID string, i int) string {
	return "/sheets/" + url.PathEscape(sheetID) + "/labels/" + strconv.Itoa(i) + ".png"
}
