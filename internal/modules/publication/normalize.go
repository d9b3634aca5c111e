package publication

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/komuness/core/internal/models"
)

var (
	eventTimePattern  = regexp.MustCompile(`^\d{2}:\d{2}$`)
	phoneNoisePattern = regexp.MustCompile(`[\s\-\+\(\)]`)
	digitsPattern     = regexp.MustCompile(`^\d+$`)
	priceSymbols      = strings.NewReplacer("₡", "", "$", "", ",", "")
)

// ParsePrice accepts a finite number or a currency-formatted string.
// Anything else is reported as absent.
func ParsePrice(input any) (float64, bool) {
	switch v := input.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(priceSymbols.Replace(trimmed)), 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseEventTime accepts a 24h HH:MM time of day.
func ParseEventTime(input string) (string, bool) {
	t := strings.TrimSpace(input)
	if !eventTimePattern.MatchString(t) {
		return "", false
	}
	hour, _ := strconv.Atoi(t[:2])
	minute, _ := strconv.Atoi(t[3:])
	if hour > 23 || minute > 59 {
		return "", false
	}
	return t, true
}

// ParsePhone trims the value. An empty result means absent.
func ParsePhone(input string) string {
	return strings.TrimSpace(input)
}

// FormatLinkURL prefixes bare e-mail addresses with mailto: and bare phone
// numbers with tel:.
func FormatLinkURL(raw string) string {
	u := strings.TrimSpace(raw)
	if strings.Contains(u, "@") && !strings.HasPrefix(u, "mailto:") {
		return "mailto:" + u
	}
	if digitsPattern.MatchString(phoneNoisePattern.ReplaceAllString(u, "")) && !strings.HasPrefix(u, "tel:") {
		return "tel:" + u
	}
	return u
}

// ParseLinks decodes a JSON array of {nombre, url}. Invalid entries are
// dropped. Malformed JSON yields an empty list; a JSON value that is not an
// array yields ok=false.
func ParseLinks(raw string) (models.ExternalLinks, bool) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return models.ExternalLinks{}, true
	}
	items, isArray := decoded.([]any)
	if !isArray {
		return nil, false
	}

	links := make(models.ExternalLinks, 0, len(items))
	for _, item := range items {
		entry, _ := item.(map[string]any)
		name, nameOK := entry["nombre"].(string)
		url, urlOK := entry["url"].(string)
		if !nameOK || !urlOK {
			continue
		}
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if name == "" || url == "" {
			continue
		}
		links = append(links, models.ExternalLink{Name: name, URL: FormatLinkURL(url)})
	}
	return links, true
}

// ParseKeptImages decodes a JSON array of {url, key} and keeps only entries
// that match a live attachment, in submitted order.
func ParseKeptImages(raw string, live []models.Attachment) models.Attachments {
	kept := models.Attachments{}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return kept
	}

	known := make(map[models.Attachment]struct{}, len(live))
	for _, a := range live {
		known[a] = struct{}{}
	}
	for _, item := range items {
		entry, _ := item.(map[string]any)
		url, urlOK := entry["url"].(string)
		key, keyOK := entry["key"].(string)
		if !urlOK || !keyOK {
			continue
		}
		att := models.Attachment{URL: url, Key: key}
		if _, ok := known[att]; ok {
			kept = append(kept, att)
		}
	}
	return kept
}
