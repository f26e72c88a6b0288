package tool

import (
	"context"
	"fmt"
	"time"
)

// DateTime reports the current local and UTC time.
type DateTime struct{}

// NewDateTime creates the get_datetime built-in.
func NewDateTime() *DateTime { return &DateTime{} }

// Name implements Tool.
func (t *DateTime) Name() string { return "get_datetime" }

// Description implements Tool.
func (t *DateTime) Description() string {
	return "Get the current date and time. Useful when the user asks about the current time or date."
}

// Parameters implements Tool.
func (t *DateTime) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// Execute implements Tool.
func (t *DateTime) Execute(context.Context, map[string]any) (string, error) {
	now := time.Now()
	return fmt.Sprintf("Local: %s\nUTC: %s",
		now.Format("2006-01-02 15:04:05"),
		now.UTC().Format("2006-01-02 15:04:05")), nil
}
