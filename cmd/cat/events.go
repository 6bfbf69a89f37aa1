package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

const maxEventsFileSize = 256 * 1024 * 1024

type eventsFile struct {
	Events []topology.Event `json:"events"`
}

// readEvents loads the events of a JSON events file. Cell and calorimeter
// ids must be unique within an event.
func readEvents(path string) ([]topology.Event, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat events file: %w", err)
	}
	if info.Size() > maxEventsFileSize {
		return nil, fmt.Errorf("events file too large: %d bytes (max %d)", info.Size(), maxEventsFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	var file eventsFile
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse events file: %w", err)
	}
	for _, ev := range file.Events {
		if err := checkEvent(ev); err != nil {
			return nil, err
		}
	}
	return file.Events, nil
}

func checkEvent(ev topology.Event) error {
	cells := make(map[int]bool, len(ev.Cells))
	for _, c := range ev.Cells {
		if cells[c.ID] {
			return fmt.Errorf("event %d: duplicate cell id %d", ev.ID, c.ID)
		}
		if c.R.Value < 0 {
			return fmt.Errorf("event %d: cell %d has negative radius", ev.ID, c.ID)
		}
		cells[c.ID] = true
	}
	calos := make(map[int]bool, len(ev.CaloHits))
	for _, h := range ev.CaloHits {
		if calos[h.ID] {
			return fmt.Errorf("event %d: duplicate calo id %d", ev.ID, h.ID)
		}
		calos[h.ID] = true
	}
	return nil
}
