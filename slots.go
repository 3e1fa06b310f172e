package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var eventTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// Slot is a bookable lane session.
type Slot struct {
	Start        StartTime
	Lane         Lane
	Available    bool
	StartsAt     time.Time
	EventID      int
	EventChainID int
}

type eventsResponse struct {
	Embedded struct {
		Events []event `json:"events"`
	} `json:"_embedded"`
}

type event struct {
	ID           int    `json:"id"`
	EventChainID int    `json:"event_chain_id"`
	Datetime     string `json:"datetime"`
	Description  string `json:"description"`
}

// Slots returns the bookable slots on the given date.
func (b *Bot) Slots(ctx context.Context, date time.Time) ([]Slot, error) {
	day := date.Format(dateLayout)
	b.log.Infof("retrieving slots for %s", day)

	params := url.Values{
		"start_date":           {day},
		"end_date":             {day},
		"include_non_bookable": {"false"},
	}
	u := fmt.Sprintf("%s/%d/events?%s", b.cfg.APIURL, b.cfg.SiteID, params.Encode())
	res, err := b.do(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return nil, fmt.Errorf("couldn't retrieve slots: %w", err)
	}

	var out eventsResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("couldn't decode events: %w", err)
	}

	slots := make([]Slot, 0, len(out.Embedded.Events))
	for _, e := range out.Embedded.Events {
		s, err := e.slot()
		if err != nil {
			b.log.WithField("event_id", e.ID).Warnf("skipping event: %v", err)
			continue
		}
		slots = append(slots, s)
	}
	b.log.Infof("found %d available slots for %s", len(slots), day)
	return slots, nil
}

func (e event) slot() (Slot, error) {
	var (
		t   time.Time
		err error
	)
	for _, layout := range eventTimeLayouts {
		if t, err = time.Parse(layout, e.Datetime); err == nil {
			break
		}
	}
	if err != nil {
		return Slot{}, fmt.Errorf("invalid datetime %q", e.Datetime)
	}
	// Only bookable events are requested.
	return Slot{
		Start:        startTimeOf(t),
		Lane:         laneFromDescription(e.Description),
		Available:    true,
		StartsAt:     t,
		EventID:      e.ID,
		EventChainID: e.EventChainID,
	}, nil
}

// Match returns the first available slot starting at start in lane.
func Match(slots []Slot, start StartTime, lane Lane) (Slot, error) {
	for _, s := range slots {
		if s.Available && s.Start == start && s.Lane == lane {
			return s, nil
		}
	}
	return Slot{}, fmt.Errorf("%w: start %s, lane %s", ErrNoSlot, start, lane)
}
