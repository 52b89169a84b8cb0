package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groblegark/auditstore/internal/export"
	"github.com/groblegark/auditstore/internal/model"
)

var exportFlags struct {
	format     string
	output     string
	s3Bucket   string
	s3Key      string
	s3Region   string
	s3Endpoint string
	filters    filterFlags
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export matching events to a file or S3",
	GroupID: "events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, err := activeRepo(ctx)
		if err != nil {
			return err
		}

		exporter, err := export.ForFormat(exportFlags.format)
		if err != nil {
			return err
		}
		filter, err := exportFlags.filters.build()
		if err != nil {
			return err
		}
		var filters []model.Filter
		if !filter.IsEmpty() {
			filters = append(filters, filter)
		}

		events, err := export.FromFilters(ctx, repo, filters)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := exporter.Export(&buf, events); err != nil {
			return err
		}

		if exportFlags.s3Bucket != "" {
			dest, err := export.NewS3Destination(ctx,
				exportFlags.s3Bucket, exportFlags.s3Key,
				exportFlags.s3Region, exportFlags.s3Endpoint)
			if err != nil {
				return err
			}
			if err := dest.Write(ctx, buf.Bytes(), exporter.ContentType()); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "exported %d event(s) to s3://%s/%s\n",
				len(events), exportFlags.s3Bucket, exportFlags.s3Key)
			return nil
		}

		if exportFlags.output == "" || exportFlags.output == "-" {
			_, err := os.Stdout.Write(buf.Bytes())
			return err
		}
		dest := export.FileDestination{Path: exportFlags.output}
		if err := dest.Write(ctx, buf.Bytes(), exporter.ContentType()); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported %d event(s) to %s\n", len(events), exportFlags.output)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.format, "format", "ndjson", "export format (csv, tsv, json, ndjson)")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "-", "output path, or - for stdout")
	exportCmd.Flags().StringVar(&exportFlags.s3Bucket, "s3-bucket", "", "upload to this S3 bucket instead of a file")
	exportCmd.Flags().StringVar(&exportFlags.s3Key, "s3-key", "audit/export.ndjson", "S3 object key")
	exportCmd.Flags().StringVar(&exportFlags.s3Region, "s3-region", "us-east-1", "S3 region")
	exportCmd.Flags().StringVar(&exportFlags.s3Endpoint, "s3-endpoint", "", "custom S3 endpoint (for MinIO and similar)")
	exportFlags.filters.register(exportCmd)
}
