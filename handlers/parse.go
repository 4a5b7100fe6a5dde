package handlers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	stationSplit = regexp.MustCompile(`(?i)\s+(?:to|-|→)\s+`)
	timePattern  = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// parseDate accepts DD/MM/YYYY or YYYY-MM-DD and returns the canonical
// YYYY-MM-DD form. Claims are for journeys already taken, so a future
// date is rejected.
func parseDate(text string, now time.Time) (string, error) {
	text = strings.TrimSpace(text)

	var parsed time.Time
	var err error

	switch {
	case strings.Contains(text, "/"):
		parsed, err = time.Parse("02/01/2006", text)
	default:
		parsed, err = time.Parse("2006-01-02", text)
	}
	if err != nil {
		return "", fmt.Errorf("unrecognized date %q", text)
	}

	if parsed.After(now) {
		return "", fmt.Errorf("date %q is in the future", text)
	}

	return parsed.Format("2006-01-02"), nil
}

// parseStations splits "KGX to YRK" (also "-" or "→" separators) into an
// origin and destination pair.
func parseStations(text string) (origin, destination string, err error) {
	parts := stationSplit.Split(strings.TrimSpace(text), 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected two stations, got %q", text)
	}

	origin = strings.ToUpper(strings.TrimSpace(parts[0]))
	destination = strings.ToUpper(strings.TrimSpace(parts[1]))
	if origin == "" || destination == "" || origin == destination {
		return "", "", fmt.Errorf("invalid station pair %q", text)
	}

	return origin, destination, nil
}

// parseClock validates an HH:MM time of day and returns it zero-padded.
func parseClock(text string) (string, error) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", fmt.Errorf("unrecognized time %q", text)
	}

	hour, _ := strconv.Atoi(m[1])

	return fmt.Sprintf("%02d:%s", hour, m[2]), nil
}

// parseYesNo interprets a confirmation reply. ok is false for anything
// that is neither an affirmative nor a negative.
func parseYesNo(text string) (yes, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "yeah", "yep", "correct", "ok":
		return true, true
	case "no", "n", "nope", "wrong":
		return false, true
	}

	return false, false
}

// parseSelection interprets an alternative-round reply: a 1-based number,
// or "NONE" to ask for another round.
func parseSelection(text string) (n int, none bool, err error) {
	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "none") {
		return 0, true, nil
	}

	n, convErr := strconv.Atoi(text)
	if convErr != nil || n < 1 {
		return 0, false, fmt.Errorf("expected a number or NONE, got %q", text)
	}

	return n, false, nil
}

func isOTPShaped(text string) bool {
	return otpPattern.MatchString(strings.TrimSpace(text))
}
