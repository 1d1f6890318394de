package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode is the value of --ui.
type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	mode := uiMode(strings.ToLower(strings.TrimSpace(value)))
	switch mode {
	case "":
		return uiModeAuto, nil
	case uiModeAuto, uiModeOn, uiModeOff:
		return mode, nil
	}
	return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
}

// shouldUseTUI resolves auto to "stdout is a capable terminal".
func shouldUseTUI(mode uiMode) bool {
	if mode != uiModeAuto {
		return mode == uiModeOn
	}
	if os.Getenv("TERM") == "dumb" || os.Getenv("CI") != "" {
		return false
	}
	return isTerminal(os.Stdout)
}
