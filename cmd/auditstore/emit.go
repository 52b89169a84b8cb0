package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/listener"
	"github.com/groblegark/auditstore/internal/model"
)

var emitTopic string

// emit publishes event data to the bus instead of writing storage
// directly; a running serve process picks it up. Useful for smoke
// testing the listener path.
var emitCmd = &cobra.Command{
	Use:     "emit <event-json>",
	Short:   "Publish event data to the NATS audit subject",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.NATSURL == "" {
			return fmt.Errorf("AUDITSTORE_NATS_URL is required for emit")
		}

		var data model.EventData
		if err := json.Unmarshal([]byte(args[0]), &data); err != nil {
			return fmt.Errorf("event data: %w", err)
		}
		// Validate locally so bad payloads fail here, not in the
		// listener's logs.
		if _, err := model.New(data); err != nil {
			return err
		}

		pub, err := listener.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer pub.Close()

		return pub.Publish(cmd.Context(), emitTopic, data)
	},
}

func init() {
	emitCmd.Flags().StringVar(&emitTopic, "topic", "audit.event.cli", "subject to publish on")
}
