package scenario

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commuteScenario = `
name: commute
description: Two places 200 m apart, 45 minutes between them
device: phone
virtual_start: 2025-10-30T08:00:00Z
run_at: 2h
events:
  - at: 0s
    kind: location
    latitude: 60.1700
    longitude: 24.9400
    description: at home
  - at: 45m
    kind: location
    latitude: 60.1718
    longitude: 24.9400
    description: arrived
expectations:
  slot_count: 2
  slots:
    - category: commute
    - not_category: commute
`

func TestLoadScenarioFromBytes(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(commuteScenario))
	require.NoError(t, err)

	assert.Equal(t, "commute", s.Name)
	assert.Equal(t, "phone", s.Device)
	assert.Equal(t, time.Date(2025, 10, 30, 8, 0, 0, 0, time.UTC), s.VirtualStart.UTC())
	assert.Equal(t, 2*time.Hour, s.RunAt)
	assert.Equal(t, time.Date(2025, 10, 30, 10, 0, 0, 0, time.UTC), s.Now().UTC())
	require.Len(t, s.Events, 2)
	assert.Equal(t, time.Date(2025, 10, 30, 8, 45, 0, 0, time.UTC), s.Events[1].Timestamp(s).UTC())
	require.NotNil(t, s.Expectations.SlotCount)
	assert.Equal(t, 2, *s.Expectations.SlotCount)
	assert.Equal(t, "commute", s.Expectations.Slots[0].Category)
}

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(commuteScenario), 0o600))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "commute", s.Name)
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		s, err := LoadScenarioFromBytes([]byte(commuteScenario))
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name   string
		modify func(*Scenario)
	}{
		{name: "missing name", modify: func(s *Scenario) { s.Name = "" }},
		{name: "missing start", modify: func(s *Scenario) { s.VirtualStart = time.Time{} }},
		{name: "bad day", modify: func(s *Scenario) { s.Day = "30.10.2025" }},
		{name: "no events", modify: func(s *Scenario) { s.Events = nil }},
		{name: "negative offset", modify: func(s *Scenario) { s.Events[1].At = -time.Minute }},
		{name: "events out of order", modify: func(s *Scenario) { s.Events[0].At = time.Hour }},
		{name: "event after run", modify: func(s *Scenario) { s.Events[1].At = 3 * time.Hour }},
		{name: "unknown kind", modify: func(s *Scenario) { s.Events[0].Kind = "heartbeat" }},
		{name: "motion without duration", modify: func(s *Scenario) {
			s.Events[0] = RawEvent{Kind: KindMotion, Activity: "walk", Description: "walk"}
		}},
		{name: "unknown category", modify: func(s *Scenario) { s.Expectations.Slots[0].Category = "napping" }},
		{name: "no expectations", modify: func(s *Scenario) { s.Expectations = Expectations{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.modify(s)
			assert.Error(t, ValidateScenario(s))
		})
	}
}
