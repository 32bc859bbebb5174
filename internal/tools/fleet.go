// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package tools

import (
	"context"
	"fmt"
)

// NewFleetRegistry returns a Registry populated with the fleet tool set:
// read-only catalog lookups plus the mutation-capable assignment tools.
func NewFleetRegistry() *Registry {
	r := NewRegistry()
	for _, t := range fleetTools() {
		// Registration of the built-in set cannot fail: names are unique
		// and every mutating tool carries a preview.
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func fleetTools() []*Tool {
	return []*Tool{
		{
			Name:        "get_officer",
			Description: "Look up one officer by id, including level, rarity, and current ship assignment.",
			InputSchema: objectSchema(map[string]any{
				"officer_id": stringSchema("Officer identifier"),
			}, "officer_id"),
			Handler: func(ctx context.Context, scope Scope, args map[string]any) (any, error) {
				id, err := stringArg(args, "officer_id")
				if err != nil {
					return nil, err
				}
				return scope.Fleet.GetOfficer(ctx, id)
			},
		},
		{
			Name:        "search_officers",
			Description: "Search the officer roster by name substring.",
			InputSchema: objectSchema(map[string]any{
				"query": stringSchema("Name fragment to search for"),
			}, "query"),
			Handler: func(ctx context.Context, scope Scope, args map[string]any) (any, error) {
				q, err := stringArg(args, "query")
				if err != nil {
					return nil, err
				}
				return scope.Fleet.SearchOfficers(ctx, q)
			},
		},
		{
			Name:        "list_ships",
			Description: "List all ships in the fleet with tier and power.",
			InputSchema: objectSchema(map[string]any{}),
			Handler: func(ctx context.Context, scope Scope, _ map[string]any) (any, error) {
				return scope.Fleet.ListShips(ctx)
			},
		},
		{
			Name:        "get_dock",
			Description: "Look up one drydock slot and the ship currently docked in it.",
			InputSchema: objectSchema(map[string]any{
				"dock_id": intSchema("Dock slot number"),
			}, "dock_id"),
			Handler: func(ctx context.Context, scope Scope, args map[string]any) (any, error) {
				id, err := intArg(args, "dock_id")
				if err != nil {
					return nil, err
				}
				return scope.Fleet.GetDock(ctx, id)
			},
		},
		{
			Name:        "assign_officer",
			Description: "Assign an officer to a ship. This changes the fleet roster.",
			InputSchema: objectSchema(map[string]any{
				"officer_id": stringSchema("Officer identifier"),
				"ship_id":    stringSchema("Ship identifier"),
			}, "officer_id", "ship_id"),
			Mutating: true,
			Preview: func(args map[string]any) string {
				return fmt.Sprintf("Assign officer %s to ship %s",
					argOrPlaceholder(args, "officer_id"), argOrPlaceholder(args, "ship_id"))
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]any) (any, error) {
				officerID, err := stringArg(args, "officer_id")
				if err != nil {
					return nil, err
				}
				shipID, err := stringArg(args, "ship_id")
				if err != nil {
					return nil, err
				}
				if err := scope.Fleet.AssignOfficer(ctx, officerID, shipID); err != nil {
					return nil, err
				}
				return map[string]any{"assigned": true, "officer_id": officerID, "ship_id": shipID}, nil
			},
		},
		{
			Name:        "set_dock_ship",
			Description: "Dock a ship in a drydock slot. This changes the dock layout.",
			InputSchema: objectSchema(map[string]any{
				"dock_id": intSchema("Dock slot number"),
				"ship_id": stringSchema("Ship identifier"),
			}, "dock_id", "ship_id"),
			Mutating: true,
			Preview: func(args map[string]any) string {
				return fmt.Sprintf("Dock ship %s in slot %s",
					argOrPlaceholder(args, "ship_id"), argOrPlaceholder(args, "dock_id"))
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]any) (any, error) {
				dockID, err := intArg(args, "dock_id")
				if err != nil {
					return nil, err
				}
				shipID, err := stringArg(args, "ship_id")
				if err != nil {
					return nil, err
				}
				if err := scope.Fleet.SetDockShip(ctx, dockID, shipID); err != nil {
					return nil, err
				}
				return map[string]any{"docked": true, "dock_id": dockID, "ship_id": shipID}, nil
			},
		},
		{
			Name:        "set_officer_target",
			Description: "Set an officer's target level for upgrade planning.",
			InputSchema: objectSchema(map[string]any{
				"officer_id":   stringSchema("Officer identifier"),
				"target_level": intSchema("Desired level"),
			}, "officer_id", "target_level"),
			Mutating: true,
			Preview: func(args map[string]any) string {
				return fmt.Sprintf("Set officer %s target level to %s",
					argOrPlaceholder(args, "officer_id"), argOrPlaceholder(args, "target_level"))
			},
			Handler: func(ctx context.Context, scope Scope, args map[string]any) (any, error) {
				officerID, err := stringArg(args, "officer_id")
				if err != nil {
					return nil, err
				}
				target, err := intArg(args, "target_level")
				if err != nil {
					return nil, err
				}
				if err := scope.Fleet.SetOfficerTarget(ctx, officerID, target); err != nil {
					return nil, err
				}
				return map[string]any{"updated": true, "officer_id": officerID, "target_level": target}, nil
			},
		},
	}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringSchema(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intSchema(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}
