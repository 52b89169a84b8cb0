package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/model"
)

var writeFlags struct {
	category       string
	action         string
	actor          string
	actionObject   string
	actionObjectID string
	targetType     string
	targetID       string
	timestamp      string
	result         string
	payload        string
}

var writeCmd = &cobra.Command{
	Use:     "write",
	Short:   "Write a single audit event",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}

		data := model.EventData{
			Category:       writeFlags.category,
			Action:         writeFlags.action,
			Actor:          writeFlags.actor,
			ActionObject:   writeFlags.actionObject,
			ActionObjectID: writeFlags.actionObjectID,
			TargetType:     writeFlags.targetType,
			TargetID:       writeFlags.targetID,
			Timestamp:      writeFlags.timestamp,
		}
		if writeFlags.result != "" {
			if err := json.Unmarshal([]byte(writeFlags.result), &data.Result); err != nil {
				return fmt.Errorf("--result: %w", err)
			}
		}
		if writeFlags.payload != "" {
			if err := json.Unmarshal([]byte(writeFlags.payload), &data.Payload); err != nil {
				return fmt.Errorf("--payload: %w", err)
			}
		}

		event, err := repo.BuildEvent(data)
		if err != nil {
			return err
		}
		if res := repo.WriteEvent(ctx, event); !res.Status {
			return printResult(res)
		}
		return printEvent(event)
	},
}

var getCmd = &cobra.Command{
	Use:     "get <id>",
	Short:   "Fetch one event by ID",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}

		event, err := repo.GetEvent(ctx, args[0])
		if err != nil {
			return err
		}
		if event == nil {
			return fmt.Errorf("event %s not found", args[0])
		}
		return printEvent(event)
	},
}

var listFlags filterFlags

var filterCmd = &cobra.Command{
	Use:     "filter",
	Short:   "List events matching the given criteria",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}

		filter, err := listFlags.build()
		if err != nil {
			return err
		}
		events, err := repo.FilterEvents(ctx, filter)
		if err != nil {
			return err
		}
		return printEvents(events)
	},
}

func init() {
	writeCmd.Flags().StringVar(&writeFlags.category, "category", "", "event category (required)")
	writeCmd.Flags().StringVar(&writeFlags.action, "action", "", "event action (required)")
	writeCmd.Flags().StringVar(&writeFlags.actor, "actor", "", "actor ID")
	writeCmd.Flags().StringVar(&writeFlags.actionObject, "action-object", "", "action object type")
	writeCmd.Flags().StringVar(&writeFlags.actionObjectID, "action-object-id", "", "action object ID")
	writeCmd.Flags().StringVar(&writeFlags.targetType, "target-type", "", "target type")
	writeCmd.Flags().StringVar(&writeFlags.targetID, "target-id", "", "target ID")
	writeCmd.Flags().StringVar(&writeFlags.timestamp, "timestamp", "", "event time (defaults to now)")
	writeCmd.Flags().StringVar(&writeFlags.result, "result", "", "result as a JSON object")
	writeCmd.Flags().StringVar(&writeFlags.payload, "payload", "", "payload as a JSON object")
	_ = writeCmd.MarkFlagRequired("category")
	_ = writeCmd.MarkFlagRequired("action")

	listFlags.register(filterCmd)
}
