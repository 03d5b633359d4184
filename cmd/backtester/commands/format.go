package commands

import (
	"fmt"
	"strings"

	"github.com/yielddelta/backtester/internal/runplan"
)

// Common output helpers so every command prints the same way.

// PrintHeader prints a command banner with key/value details.
func PrintHeader(title string, details [][2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, kv := range details {
		PrintKeyValue(kv[0], kv[1], 10)
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println(strings.Repeat("─", 59))
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println(strings.Repeat("═", 59))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintPlanWarnings prints plan lint warnings.
func PrintPlanWarnings(warnings []runplan.Warning) {
	for _, w := range warnings {
		PrintWarning(fmt.Sprintf("[%s] %s", w.Code, w.Message))
	}
}
