package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	cyan   = color.New(color.FgCyan, color.Bold)
	red    = color.New(color.FgRed)
)

func header(w io.Writer, text string) {
	line := strings.Repeat("=", 60)
	cyan.Fprintf(w, "%s\n%s\n%s\n", line, text, line)
}

func success(w io.Writer, format string, a ...interface{}) {
	green.Fprintf(w, "  → "+format+"\n", a...)
}

func info(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintf(w, "  → "+format+"\n", a...)
}

func warning(w io.Writer, format string, a ...interface{}) {
	yellow.Fprintf(w, "  ⚠ "+format+"\n", a...)
}

func failure(w io.Writer, format string, a ...interface{}) {
	red.Fprintf(w, "Error: "+format+"\n", a...)
}

// field prints an aligned "label: value" line.
func field(w io.Writer, label string, value interface{}) {
	fmt.Fprintf(w, "  %-16s %v\n", label+":", value)
}
