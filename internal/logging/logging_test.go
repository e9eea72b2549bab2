package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "query-api", "debug")
	log.Debug().Str("scope", "mining|west").Msg("summary computed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "query-api" || entry["scope"] != "mining|west" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithWriterUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "alert-service", "chatty")
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered at default info level, got %q", buf.String())
	}
	log.Info().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("expected info line")
	}
}
