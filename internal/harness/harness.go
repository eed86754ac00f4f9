package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/roster"
	"github.com/roach88/rollcall/internal/store"
	"github.com/roach88/rollcall/internal/testutil"
)

// Fixed identities used by every scenario.
const (
	CommunityID    = "community"
	DisplaySurface = "display"
	SelfID         = "rollcall"
)

// Harness is the scenario execution environment.
// It wires a fresh in-memory store and surface to a real engine.
type Harness struct {
	store    *store.Store
	surface  *testutil.MemSurface
	notifier *testutil.MemNotifier
	engine   *engine.Engine
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database and surface.
// Deterministic pass and message ids keep traces reproducible.
//
// Execution flow:
// 1. Create fresh in-memory database and configure the display surface
// 2. Apply setup actions
// 3. Seed the surface (planned seeds resolve against the roster after setup)
// 4. Execute flow steps with expect validation
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with engine logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	order := roster.OrderDefinition
	if scenario.GroupOrder != "" {
		order = roster.GroupOrder(scenario.GroupOrder)
	}

	st, err := store.Open(":memory:", store.WithGroupOrder(order))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	err = st.SetDestination(ctx, roster.Settings{
		CommunityID:      CommunityID,
		DisplaySurfaceID: DisplaySurface,
		LogSurfaceID:     scenario.LogSurface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure destination: %w", err)
	}

	surface := testutil.NewMemSurface(SelfID)
	notifier := testutil.NewMemNotifier(nil)

	opts := []engine.Option{
		engine.WithLayout(engine.Layout{Title: scenario.Title}),
		engine.WithNotifier(notifier),
		engine.WithPassIDGenerator(testutil.NewFixedPassIDGenerator(scenario.PassID)),
		engine.WithLogger(logger),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}

	h := &Harness{
		store:    st,
		surface:  surface,
		notifier: notifier,
		engine:   engine.New(st, surface, opts...),
		logger:   logger,
	}

	for i, step := range scenario.Setup {
		if err := h.applyAction(ctx, step.Action, step.Args); err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
	}

	if err := h.seed(ctx, scenario.Surface); err != nil {
		return nil, fmt.Errorf("failed to seed surface: %w", err)
	}

	result := NewResult()
	result.Seeded = surface.Messages(DisplaySurface)

	h.executeFlow(ctx, scenario.Flow, result)

	planned, err := h.plan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to plan final roster: %w", err)
	}
	result.Planned = planned
	result.Surface = surface.Messages(DisplaySurface)
	result.Writes = surface.Writes()
	result.Notices = len(notifier.Posts())

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// plan renders the current roster.
func (h *Harness) plan(ctx context.Context) ([]string, error) {
	snap, err := h.store.Snapshot(ctx, CommunityID)
	if err != nil {
		return nil, err
	}
	blocks := h.engine.Planner().Plan(snap)
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Content
	}
	return out, nil
}

// seed places the initial messages on the display surface.
func (h *Harness) seed(ctx context.Context, seeds []SeedMessage) error {
	if len(seeds) == 0 {
		return nil
	}

	planned, err := h.plan(ctx)
	if err != nil {
		return err
	}

	for i, s := range seeds {
		content := s.Content
		if s.Planned != nil {
			if *s.Planned >= len(planned) {
				return fmt.Errorf("surface[%d]: planned index %d out of range (%d blocks)", i, *s.Planned, len(planned))
			}
			content = planned[*s.Planned]
		}

		switch s.Author {
		case "self":
			h.surface.Seed(DisplaySurface, h.surface.Owned(content))
		case "system":
			h.surface.Seed(DisplaySurface, testutil.System(content))
		default:
			h.surface.Seed(DisplaySurface, testutil.Foreign(s.Author, content))
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
// Failed roster actions are traced and do not stop the flow.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		event := TraceEvent{Step: i + 1, Invoke: step.Invoke, Args: step.Args}

		switch step.Invoke {
		case InvokeReconcile:
			h.reconcile(ctx, &event)
			validateExpect(i, step.Expect, event, result)

		case InvokeFail, InvokeRecover:
			h.fault(step.Invoke, step.Args)

		default:
			if err := h.applyAction(ctx, step.Invoke, step.Args); err != nil {
				event.Error = err.Error()
			}
		}

		h.logger.Debug("flow step completed",
			"step", event.Step,
			"invoke", event.Invoke,
			"outcome", event.Outcome,
			"writes", len(event.Writes),
		)
		result.Trace = append(result.Trace, event)
	}
}

func (h *Harness) reconcile(ctx context.Context, event *TraceEvent) {
	before := len(h.surface.Writes())

	report, err := h.engine.Reconcile(ctx, CommunityID)

	event.Writes = h.surface.Writes()[before:]
	event.Stats = report.Stats
	switch {
	case err != nil:
		event.Outcome = OutcomeFailed
		event.ErrorCode = string(engine.PassErrorCodeOf(err))
		event.Error = err.Error()
	case report.Skipped:
		event.Outcome = OutcomeSkipped
	default:
		event.Outcome = OutcomeConverged
	}
}

func validateExpect(index int, expect *ExpectClause, event TraceEvent, result *Result) {
	if expect == nil {
		return
	}
	if expect.Outcome != event.Outcome {
		result.AddError(fmt.Sprintf("flow[%d]: expected outcome %s, got %s (%s)",
			index, expect.Outcome, event.Outcome, event.Error))
		return
	}
	if expect.Error != "" && expect.Error != event.ErrorCode {
		result.AddError(fmt.Sprintf("flow[%d]: expected error %s, got %s", index, expect.Error, event.ErrorCode))
	}
	if expect.Writes != nil && *expect.Writes != len(event.Writes) {
		result.AddError(fmt.Sprintf("flow[%d]: expected %d writes, got %d", index, *expect.Writes, len(event.Writes)))
	}
}

func (h *Harness) fault(invoke string, args map[string]interface{}) {
	op, _ := args["op"].(string)

	var err error
	if invoke == InvokeFail {
		msg, _ := args["message"].(string)
		if msg == "" {
			msg = op + " rejected"
		}
		err = errors.New(msg)
	}

	if op == "history" {
		h.surface.FailHistory(err)
		return
	}
	h.surface.FailOn(engine.Op(op), err)
}

// applyAction performs one roster action against the store.
func (h *Harness) applyAction(ctx context.Context, action string, args map[string]interface{}) error {
	switch action {
	case ActionCreateGroup:
		name, err := argString(args, "name")
		if err != nil {
			return err
		}
		_, err = h.store.CreateGroup(ctx, name, argInt(args, "priority", 0))
		return err

	case ActionRenameGroup:
		g, err := h.findGroup(ctx, args, "name")
		if err != nil {
			return err
		}
		newName, err := argString(args, "new_name")
		if err != nil {
			return err
		}
		_, err = h.store.RenameGroup(ctx, g.ID, newName, argInt(args, "priority", g.Priority))
		return err

	case ActionDeleteGroup:
		g, err := h.findGroup(ctx, args, "name")
		if err != nil {
			return err
		}
		_, err = h.store.DeleteGroup(ctx, g.ID)
		return err

	case ActionAddMember:
		g, err := h.findGroup(ctx, args, "group")
		if err != nil {
			return err
		}
		personID, err := argString(args, "person_id")
		if err != nil {
			return err
		}
		_, err = h.store.AssignMember(ctx, roster.Member{
			PersonID:          personID,
			PersonDisplayName: argOptional(args, "display_name"),
			ProfileName:       argOptional(args, "profile_name"),
			ProfileReference:  argOptional(args, "profile_reference"),
			GroupID:           &g.ID,
		})
		return err

	case ActionRemoveMember:
		personID, err := argString(args, "person_id")
		if err != nil {
			return err
		}
		removed, err := h.store.RemoveMember(ctx, personID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("member %s: %w", personID, store.ErrMemberNotFound)
		}
		return nil

	case ActionMoveMember:
		g, err := h.findGroup(ctx, args, "group")
		if err != nil {
			return err
		}
		personID, err := argString(args, "person_id")
		if err != nil {
			return err
		}
		_, err = h.store.MoveMember(ctx, personID, g.ID)
		return err

	case ActionSetDestination:
		return h.store.SetDestination(ctx, roster.Settings{
			CommunityID:      CommunityID,
			DisplaySurfaceID: argOptional(args, "display"),
			LogSurfaceID:     argOptional(args, "log"),
		})

	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (h *Harness) findGroup(ctx context.Context, args map[string]interface{}, key string) (roster.Group, error) {
	name, err := argString(args, key)
	if err != nil {
		return roster.Group{}, err
	}
	return h.store.FindGroup(ctx, name)
}

// argString returns a required scalar argument as a string.
// YAML decodes bare numbers (common for ids) as int; those are formatted.
func argString(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("argument %q is required", key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case int, int64:
		return fmt.Sprint(val), nil
	default:
		return "", fmt.Errorf("argument %q: unsupported type %T", key, v)
	}
}

func argOptional(args map[string]interface{}, key string) string {
	s, err := argString(args, key)
	if err != nil {
		return ""
	}
	return s
}

func argInt(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}
