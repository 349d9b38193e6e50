// Package procfs reads /proc/asound text files to recover information the
// ALSA ioctl API doesn't expose through higher-level audio libraries, most
// importantly the discrete sample rates a USB DAC's playback stream
// advertises.
package procfs

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// SupportedPlaybackRates parses /proc/asound/card<N>/stream0 and returns the
// sorted, deduplicated set of sample rates the card's playback stream
// advertises. Returns (nil, nil) if the card reports a continuous range
// (any rate in range is accepted) rather than a discrete list, and a
// non-nil error only if the file could not be read at all.
func SupportedPlaybackRates(cardNumber string) ([]int, error) {
	path := fmt.Sprintf("/proc/asound/card%s/stream0", cardNumber)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return parseStreamContent(string(data))
}

// CardNumberByName resolves a symbolic ALSA card id (the name inside the
// brackets of /proc/asound/cards, e.g. the "Generic" in "hw:CARD=Generic")
// to its numeric card index.
func CardNumberByName(name string) (string, error) {
	data, err := os.ReadFile("/proc/asound/cards")
	if err != nil {
		return "", fmt.Errorf("open /proc/asound/cards: %w", err)
	}
	number, ok := parseCardsContent(string(data), name)
	if !ok {
		return "", fmt.Errorf("no card named %q in /proc/asound/cards", name)
	}
	return number, nil
}

// parseCardsContent implements the line-scanning logic CardNumberByName
// applies to /proc/asound/cards, factored out for testability. Each card's
// header line has the shape " N [shortid          ]: driver - description".
func parseCardsContent(content, name string) (string, bool) {
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		open := strings.Index(line, "[")
		close := strings.Index(line, "]")
		if open < 0 || close < open {
			continue
		}
		shortID := strings.TrimSpace(line[open+1 : close])
		if !strings.EqualFold(shortID, name) {
			continue
		}
		number := strings.TrimSpace(line[:open])
		if number == "" {
			continue
		}
		return number, true
	}
	return "", false
}

// parseStreamContent implements the line-scanning logic SupportedPlaybackRates
// applies to a stream0 file's contents, factored out so it can be tested
// without touching the real filesystem.
func parseStreamContent(content string) ([]int, error) {
	var rates []int
	seen := make(map[int]bool)
	inPlayback := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "Playback:":
			inPlayback = true
			continue
		case line == "Capture:":
			inPlayback = false
			continue
		}
		if !inPlayback || !strings.HasPrefix(line, "Rates:") {
			continue
		}

		ratesStr := strings.TrimSpace(strings.TrimPrefix(line, "Rates:"))
		if strings.Contains(ratesStr, "continuous") {
			return nil, nil
		}
		for _, part := range strings.Split(ratesStr, ",") {
			v, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if !seen[v] {
				seen[v] = true
				rates = append(rates, v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Ints(rates)
	return rates, nil
}
