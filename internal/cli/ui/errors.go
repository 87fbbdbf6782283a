package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a multi-line CLI diagnostic
type Message struct {
	Level       Level
	Context     string
	Problem     string
	Suggestions []string
	Help        []string
	NoColor     bool
}

// Format renders m, e.g.
//
//	❌ UNKNOWN COLLECTION: Cannot find collection 'page'.
//
//	   Did you mean: pages, images?
//
//	   → List routes: contentapi routes
func (m Message) Format() string {
	var b strings.Builder

	header := color.New(color.FgRed, color.Bold)
	symbol := "❌"
	switch m.Level {
	case LevelWarning:
		header = color.New(color.FgYellow, color.Bold)
		symbol = "⚠️"
	case LevelInfo:
		header = color.New(color.FgCyan, color.Bold)
		symbol = "ℹ️"
	}
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if m.NoColor {
		header.DisableColor()
		yellow.DisableColor()
		cyan.DisableColor()
	}

	if m.Context != "" {
		header.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(m.Context), m.Problem)
	} else {
		header.Fprintf(&b, "%s %s\n", symbol, m.Problem)
	}

	if len(m.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Help) > 0 {
		b.WriteString("\n")
		for _, h := range m.Help {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Error is a Message that can be returned from a command
type Error struct {
	Message
	Err error
}

func (e *Error) Error() string {
	return e.Format()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UnknownCollectionError reports a collection name no endpoint serves
func UnknownCollectionError(name string, known []string, noColor bool, err error) *Error {
	return &Error{
		Message: Message{
			Level:       LevelError,
			Context:     "unknown collection",
			Problem:     fmt.Sprintf("Cannot find collection '%s'.", name),
			Suggestions: FindSimilar(name, known, 3),
			Help:        []string{"List routes: contentapi routes"},
			NoColor:     noColor,
		},
		Err: err,
	}
}

// ConfigError reports an invalid or unreadable configuration
func ConfigError(err error, noColor bool) *Error {
	return &Error{
		Message: Message{
			Level:   LevelError,
			Context: "configuration error",
			Problem: err.Error(),
			Help: []string{
				"Create a config: contentapi init",
				"Get help: contentapi --help",
			},
			NoColor: noColor,
		},
		Err: err,
	}
}

// FormatSuccess creates a success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// Warning formats a warning with no follow-up help
func Warning(message string, noColor bool) string {
	return Message{Level: LevelWarning, Problem: message, NoColor: noColor}.Format()
}
