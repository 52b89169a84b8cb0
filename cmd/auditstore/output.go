package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/model"
	"github.com/groblegark/auditstore/internal/ui"
)

// filterFlags is the shared set of event-matching flags used by the
// filter, remove, and export commands.
type filterFlags struct {
	category       string
	action         string
	actor          string
	actionObject   string
	actionObjectID string
	targetType     string
	targetID       string
	from           string
	to             string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "", "match event category")
	cmd.Flags().StringVar(&f.action, "action", "", "match event action")
	cmd.Flags().StringVar(&f.actor, "actor", "", "match actor ID")
	cmd.Flags().StringVar(&f.actionObject, "action-object", "", "match action object type")
	cmd.Flags().StringVar(&f.actionObjectID, "action-object-id", "", "match action object ID")
	cmd.Flags().StringVar(&f.targetType, "target-type", "", "match target type")
	cmd.Flags().StringVar(&f.targetID, "target-id", "", "match target ID")
	cmd.Flags().StringVar(&f.from, "from", "", "match events at or after this time (e.g. 2024-01-01T00:00:00Z)")
	cmd.Flags().StringVar(&f.to, "to", "", "match events at or before this time")
}

func (f *filterFlags) build() (model.Filter, error) {
	filter := model.Filter{
		Category:       f.category,
		Action:         f.action,
		Actor:          f.actor,
		ActionObject:   f.actionObject,
		ActionObjectID: f.actionObjectID,
		TargetType:     f.targetType,
		TargetID:       f.targetID,
	}
	if f.from != "" {
		t, err := model.ParseTimestamp(f.from)
		if err != nil {
			return model.Filter{}, fmt.Errorf("--from: %w", err)
		}
		filter.TimeFrom = &t
	}
	if f.to != "" {
		t, err := model.ParseTimestamp(f.to)
		if err != nil {
			return model.Filter{}, fmt.Errorf("--to: %w", err)
		}
		filter.TimeTo = &t
	}
	return model.NewFilter(filter)
}

func printEvent(event *model.Event) error {
	if jsonOutput {
		return printJSON(event)
	}
	fmt.Printf("%s %s\n", ui.RenderAccent("id:"), event.ID)
	fmt.Printf("%s %s\n", ui.RenderAccent("category:"), event.Category)
	fmt.Printf("%s %s\n", ui.RenderAccent("action:"), event.Action)
	if event.Actor != "" {
		fmt.Printf("%s %s\n", ui.RenderAccent("actor:"), event.Actor)
	}
	if event.ActionObject != "" {
		fmt.Printf("%s %s", ui.RenderAccent("action object:"), event.ActionObject)
		if event.ActionObjectID != "" {
			fmt.Printf(" %s", ui.RenderMuted("("+event.ActionObjectID+")"))
		}
		fmt.Println()
	}
	if event.TargetType != "" {
		fmt.Printf("%s %s", ui.RenderAccent("target:"), event.TargetType)
		if event.TargetID != "" {
			fmt.Printf(" %s", ui.RenderMuted("("+event.TargetID+")"))
		}
		fmt.Println()
	}
	fmt.Printf("%s %s\n", ui.RenderAccent("timestamp:"), event.Timestamp)
	if len(event.Result) > 0 {
		data, err := json.Marshal(event.Result)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", ui.RenderAccent("result:"), data)
	}
	if len(event.Payload) > 0 {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", ui.RenderAccent("payload:"), data)
	}
	return nil
}

func printEvents(events []*model.Event) error {
	if jsonOutput {
		return printJSON(events)
	}
	for _, event := range events {
		fmt.Printf("%s  %s  %s.%s  %s\n",
			event.ID, event.Timestamp, event.Category, event.Action, ui.RenderMuted(event.Actor))
	}
	fmt.Printf("%s\n", ui.RenderMuted(fmt.Sprintf("%d event(s)", len(events))))
	return nil
}

func printResult(res model.Result) error {
	if jsonOutput {
		return printJSON(res)
	}
	status := "ok"
	if !res.Status {
		status = "failed"
	}
	line := status
	if res.Message != "" {
		line = status + ": " + res.Message
	}
	fmt.Println(ui.RenderStatus(line, res.Status))
	if !res.Status {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
