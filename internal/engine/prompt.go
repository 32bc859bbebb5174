// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Guffawaffle/majel/internal/store"
)

// promptHeader frames every conversation: identity, data discipline, and
// the tool contract. The roster context follows it.
const promptHeader = `You are Majel, the Fleet Intelligence System for Admiral Guff.

DATA SOURCE:
You have access to the fleet roster below and to tools that read and update it.

RULES:
1. TRUTH: Use ONLY the roster data and tool results to answer questions about officers, ships, and docks.
2. UNKNOWN: If the answer is not in the roster or obtainable through a tool, state "Data not available in current roster." Do not guess from external lore.
3. CITATION: When providing stats or details, name the specific officer or ship so the source can be verified.
4. TOOLS: Use the read tools freely. Mutation tools may require the Admiral's approval; when a call reports it was staged, tell the Admiral it awaits their approval.
5. DETERMINISM: Be concise and factual. No fluff.`

// BuildSystemPrompt renders the system prompt with the current fleet
// roster embedded as CSV. An empty roster still yields a usable prompt.
func BuildSystemPrompt(ctx context.Context, fleet store.FleetStore) (string, error) {
	officers, err := fleet.ListOfficers(ctx)
	if err != nil {
		return "", err
	}
	ships, err := fleet.ListShips(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\n--- BEGIN ROSTER DATA ---\n")
	b.WriteString(renderOfficers(officers))
	b.WriteString(renderShips(ships))
	b.WriteString("--- END ROSTER DATA ---\n")
	return b.String(), nil
}

func renderOfficers(officers []*store.Officer) string {
	var b strings.Builder
	b.WriteString("officers:\n")
	b.WriteString("id,name,rarity,level,target_level,ship_id\n")
	for _, o := range officers {
		fmt.Fprintf(&b, "%s,%s,%s,%d,%d,%s\n",
			csvField(o.ID), csvField(o.Name), csvField(o.Rarity), o.Level, o.TargetLevel, csvField(o.ShipID))
	}
	return b.String()
}

func renderShips(ships []*store.Ship) string {
	var b strings.Builder
	b.WriteString("ships:\n")
	b.WriteString("id,name,tier,power\n")
	for _, s := range ships {
		fmt.Fprintf(&b, "%s,%s,%d,%d\n", csvField(s.ID), csvField(s.Name), s.Tier, s.Power)
	}
	return b.String()
}

// csvField keeps the roster rendering one row per record even if a name
// carries a comma or newline.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
