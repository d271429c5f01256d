// Package assistant exposes calendar intake as MCP tools so a conversational
// front end can create events and read the calendar.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/timecodec"
)

type calendarService interface {
	Codec() *timecodec.Codec
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.EventResult, error)
	ListOccurrences(ctx context.Context, params application.ListOccurrencesParams) (application.OccurrenceList, error)
}

type userDirectory interface {
	ListUsers(ctx context.Context) ([]calendar.User, error)
}

// CalendarHandler implements the create_event, list_occurrences and
// list_users tools.
type CalendarHandler struct {
	calendar calendarService
	users    userDirectory
	logger   zerolog.Logger
}

func NewCalendarHandler(cal calendarService, users userDirectory, logger zerolog.Logger) *CalendarHandler {
	return &CalendarHandler{
		calendar: cal,
		users:    users,
		logger:   logger.With().Str("component", "assistant").Logger(),
	}
}

// RegisterTools registers the calendar tools on s.
func (h *CalendarHandler) RegisterTools(s *server.MCPServer) error {
	createTool := mcp.NewTool("create_event",
		mcp.WithDescription("Create a calendar event for a family member. Times without an offset are local to the family's timezone. Repeat the same session_id when retrying so the event is only created once."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short event title")),
		mcp.WithString("start", mcp.Required(), mcp.Description("Start as RFC 3339, local YYYY-MM-DDTHH:MM, or YYYY-MM-DD for all-day events")),
		mcp.WithString("end", mcp.Description("End in the same forms as start; all-day events default to one day")),
		mcp.WithString("user", mcp.Required(), mcp.Description("Family member name or user id")),
		mcp.WithBoolean("all_day", mcp.Description("Whether the event covers whole days")),
		mcp.WithString("description", mcp.Description("Optional notes")),
		mcp.WithString("recurrence_type", mcp.Description("none, daily, weekly or monthly")),
		mcp.WithNumber("recurrence_interval", mcp.Description("Repeat every N units (1-365, default 1)")),
		mcp.WithString("recurrence_end_date", mcp.Description("Last date (inclusive) as YYYY-MM-DD")),
		mcp.WithBoolean("reminder_enabled", mcp.Description("Send a push reminder before each occurrence")),
		mcp.WithNumber("reminder_minutes", mcp.Description("Reminder lead: 5, 15, 30, 60 or 1440 minutes")),
		mcp.WithString("session_id", mcp.Description("Conversation id used to de-duplicate retries")),
	)
	s.AddTool(createTool, h.handleCreateEvent)

	listTool := mcp.NewTool("list_occurrences",
		mcp.WithDescription("List event occurrences that overlap a time window, with recurring events expanded."),
		mcp.WithString("start", mcp.Required(), mcp.Description("Window start (inclusive)")),
		mcp.WithString("end", mcp.Required(), mcp.Description("Window end (exclusive)")),
		mcp.WithString("timezone", mcp.Description("IANA zone for local times, defaults to the family's timezone")),
		mcp.WithString("user", mcp.Description("Only this family member (name or id)")),
	)
	s.AddTool(listTool, h.handleListOccurrences)

	usersTool := mcp.NewTool("list_users",
		mcp.WithDescription("List family members and their ids."),
	)
	s.AddTool(usersTool, h.handleListUsers)
	return nil
}

func (h *CalendarHandler) handleCreateEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	start, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()

	ownerID, err := h.resolveUser(ctx, user)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to look up users: %v", err)), nil
	}

	input := calendar.Record{
		Title:             title,
		Description:       stringArg(args, "description"),
		StartTime:         start,
		EndTime:           stringArg(args, "end"),
		AllDay:            boolArg(args, "all_day"),
		UserID:            ownerID,
		ReminderEnabled:   boolArg(args, "reminder_enabled"),
		ReminderMinutes:   intArg(args, "reminder_minutes"),
		RecurrenceType:    stringArg(args, "recurrence_type"),
		RecurrenceEndDate: stringArg(args, "recurrence_end_date"),
	}
	if _, ok := args["recurrence_interval"]; ok {
		interval := intArg(args, "recurrence_interval")
		input.RecurrenceInterval = &interval
	}

	result, err := h.calendar.CreateEvent(ctx, application.CreateEventParams{
		Input:          input,
		IdempotencyKey: stringArg(args, "session_id"),
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("create_event rejected")
		return mcp.NewToolResultError(describeError(err)), nil
	}

	payload := map[string]any{
		"event":     calendar.RecordOf(result.Event),
		"coalesced": result.Coalesced,
	}
	if len(result.Warnings) > 0 {
		payload["conflicts"] = conflictsOf(result.Warnings)
	}
	return jsonResult(payload)
}

func (h *CalendarHandler) handleListOccurrences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	startText, err := req.RequireString("start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	endText, err := req.RequireString("end")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	zone := stringArg(args, "timezone")

	codec := h.calendar.Codec()
	if zone != "" {
		loaded, err := timecodec.Load(zone)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown timezone %q", zone)), nil
		}
		codec = loaded
	}
	start, err := calendar.ParseInstant(startText, codec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid start: %v", err)), nil
	}
	end, err := calendar.ParseInstant(endText, codec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid end: %v", err)), nil
	}

	params := application.ListOccurrencesParams{Start: start, End: end, Timezone: zone}
	if user := stringArg(args, "user"); user != "" {
		ownerID, err := h.resolveUser(ctx, user)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to look up users: %v", err)), nil
		}
		params.OwnerIDs = []string{ownerID}
	}

	list, err := h.calendar.ListOccurrences(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	occurrences := make([]occurrencePayload, 0, len(list.Occurrences))
	for _, occ := range list.Occurrences {
		occurrences = append(occurrences, occurrencePayload{
			InstanceID: occ.InstanceID,
			EventID:    occ.EventID,
			Title:      occ.Title,
			OwnerID:    occ.OwnerID,
			Start:      occ.LocalStart.String(),
			End:        occ.LocalEnd.String(),
			AllDay:     occ.AllDay,
			Recurring:  occ.IsRecurringInstance,
		})
	}
	payload := map[string]any{
		"timezone":    list.Timezone,
		"occurrences": occurrences,
		"count":       len(occurrences),
	}
	if len(list.Faults) > 0 {
		skipped := make([]string, 0, len(list.Faults))
		for _, f := range list.Faults {
			skipped = append(skipped, f.EventID)
		}
		payload["skipped_events"] = skipped
	}
	return jsonResult(payload)
}

func (h *CalendarHandler) handleListUsers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := h.users.ListUsers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list users failed: %v", err)), nil
	}
	out := make([]map[string]string, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]string{"id": u.ID, "name": u.Name, "color": u.Color})
	}
	return jsonResult(map[string]any{"users": out})
}

// resolveUser maps a family member name to an id. Unknown names are passed
// through so the calendar service reports them as a field error.
func (h *CalendarHandler) resolveUser(ctx context.Context, nameOrID string) (string, error) {
	nameOrID = strings.TrimSpace(nameOrID)
	users, err := h.users.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.ID == nameOrID || strings.EqualFold(u.Name, nameOrID) {
			return u.ID, nil
		}
	}
	return nameOrID, nil
}

type occurrencePayload struct {
	InstanceID string `json:"instance_id"`
	EventID    string `json:"event_id"`
	Title      string `json:"title"`
	OwnerID    string `json:"user_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	AllDay     bool   `json:"all_day"`
	Recurring  bool   `json:"is_recurring_instance"`
}

func conflictsOf(warnings []application.ConflictWarning) []map[string]string {
	out := make([]map[string]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, map[string]string{
			"event_id": w.EventID,
			"title":    w.Title,
			"start":    w.Start.UTC().Format(calendar.TimestampLayout),
			"end":      w.End.UTC().Format(calendar.TimestampLayout),
		})
	}
	return out
}

func describeError(err error) string {
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, application.ErrIdempotencyConflict):
		return "this session already created a different event; start a new session to create another"
	default:
		return err.Error()
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

// intArg reads a JSON number; fractional values are truncated.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
