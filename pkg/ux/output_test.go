// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.


package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []ActivationRow {
	return []ActivationRow{
		{ID: 0, Label: "IN", Position: 0, Decision: "SELECTED", Value: 1, Net: 1},
		{ID: 1, Label: "A", Position: 0, Decision: "SELECTED", Value: 0.9999, Net: 10},
		{ID: 2, Label: "B", Position: 0, Decision: "EXCLUDED", Value: 0, Net: -10},
	}
}

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		in   string
		want PersonalityLevel
	}{
		{"standard", PersonalityStandard},
		{"MIN", PersonalityMinimal},
		{" machine ", PersonalityMachine},
		{"plain", PersonalityMachine},
		{"nonsense", PersonalityStandard},
		{"", PersonalityStandard},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePersonalityLevel(tt.in))
		})
	}
}

func TestInitPersonality(t *testing.T) {
	defer SetPersonality(GetPersonality())

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(PersonalityEnv, "machine")
		InitPersonality("minimal")
		assert.Equal(t, PersonalityMinimal, GetPersonality())
	})

	t.Run("env used without flag", func(t *testing.T) {
		t.Setenv(PersonalityEnv, "machine")
		InitPersonality("")
		assert.Equal(t, PersonalityMachine, GetPersonality())
		assert.False(t, ShouldShowColors())
	})
}

func TestIsTerminal_Nil(t *testing.T) {
	assert.False(t, IsTerminal(nil))
}

func TestPrinter_Machine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithLevel(&buf, PersonalityMachine)

	p.Title("ignored")
	p.Success("done")
	p.Summary("Stats", []SummaryItem{{Label: "Candidates Expanded", Value: "3"}})
	p.Activations(sampleRows())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "OK: done", lines[0])
	assert.Equal(t, "candidates_expanded\t3", lines[1])
	assert.Equal(t, "1\tA\t0\tSELECTED\t0.9999\t10.0000", lines[3])
	assert.NotContains(t, buf.String(), "ignored")
}

func TestPrinter_Minimal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithLevel(&buf, PersonalityMinimal)

	p.Warning("slow")
	p.Activations(sampleRows())

	out := buf.String()
	assert.Contains(t, out, "⚠ slow")
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "EXCLUDED")
	assert.NotContains(t, out, "\t")
}

func TestPrinter_Standard(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinterWithLevel(&buf, PersonalityStandard)

	p.Title("Interpretation")
	p.Error("failed")
	p.Summary("Stats", []SummaryItem{{Label: "Rounds", Value: "2"}})
	p.Activations(sampleRows())

	out := buf.String()
	for _, want := range []string{"Interpretation", "failed", "Rounds", "SELECTED", "DECISION"} {
		assert.Contains(t, out, want)
	}
}
