package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errNoList = errors.New("forecast payload has no list")

type forecastEntry struct {
	Dt int64 `json:"dt"`
}

type forecastCity struct {
	Timezone int64 `json:"timezone"` // seconds east of UTC
}

// DedupByDate keeps the first entry of "list" for each calendar date, in the
// location's local time when the payload carries city.timezone. "cnt" is
// rewritten to match; every other field passes through.
func DedupByDate(body json.RawMessage) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}

	rawList, ok := doc["list"]
	if !ok {
		return nil, errNoList
	}

	var list []json.RawMessage
	if err := json.Unmarshal(rawList, &list); err != nil {
		return nil, fmt.Errorf("decode forecast list: %w", err)
	}

	var offset int64
	if rawCity, ok := doc["city"]; ok {
		var city forecastCity
		if err := json.Unmarshal(rawCity, &city); err == nil {
			offset = city.Timezone
		}
	}

	seen := make(map[string]struct{}, len(list))
	kept := make([]json.RawMessage, 0, len(list))

	for _, raw := range list {
		var e forecastEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode forecast entry: %w", err)
		}

		day := time.Unix(e.Dt+offset, 0).UTC().Format(time.DateOnly)
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		kept = append(kept, raw)
	}

	newList, err := json.Marshal(kept)
	if err != nil {
		return nil, err
	}
	doc["list"] = newList

	if _, ok := doc["cnt"]; ok {
		doc["cnt"] = json.RawMessage(fmt.Sprintf("%d", len(kept)))
	}

	return json.Marshal(doc)
}
