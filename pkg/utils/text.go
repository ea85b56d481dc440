package utils

import (
	"fmt"
	"os"
	"strings"
)

// LoadText reads a text asset such as a greeting or a system prompt from an exact path
func LoadText(filePath string) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return strings.TrimSpace(string(content)), nil
}

// LoadTextWithFallback loads a text asset, returning the fallback if it cannot be read
func LoadTextWithFallback(filePath, fallback string) string {
	if content, err := LoadText(filePath); err == nil {
		return content
	}
	return fallback
}
