package core

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/BKHilton/Ember/internal/blob"
	"github.com/BKHilton/Ember/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ReportFormat is the encoding of report files.
type ReportFormat string

// Report encodings.
const (
	ReportJSON ReportFormat = "json"
	ReportYAML ReportFormat = "yaml"
)

// Valid reports whether f is a supported format.
func (f ReportFormat) Valid() bool {
	return f == ReportJSON || f == ReportYAML
}

func reportPrefix(churchID string) string {
	return "reports/" + churchID + "/"
}

// WriteReport persists a digest to the blob store and returns its location.
func (s *Service) WriteReport(ctx context.Context, churchID string, digest domain.ReportDigest) (string, error) {
	var location string
	err := s.run(ctx, "write_report", churchID, func(ctx context.Context) (string, error) {
		if churchID == "" {
			return "", domain.ValidationError{Field: "church_id", Reason: "required"}
		}
		data, contentType, err := encodeReport(s.reportFormat, digest)
		if err != nil {
			return "", err
		}
		slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(digest.Label)), " ", "-")
		if slug == "" {
			slug = "digest"
		}
		key := fmt.Sprintf("%s%s-%s-%d.%s", reportPrefix(churchID), slug,
			digest.WindowStart.Format("2006-01-02"), digest.GeneratedAt.Unix(), s.reportFormat)
		obj, err := s.blobs.Write(ctx, key, data, contentType)
		if err != nil {
			return key, fmt.Errorf("write report: %w", err)
		}
		location = obj.Location
		return key, nil
	})
	return location, err
}

func encodeReport(format ReportFormat, digest domain.ReportDigest) ([]byte, string, error) {
	switch format {
	case ReportYAML:
		data, err := yaml.Marshal(digest)
		return data, "application/yaml", err
	case ReportJSON, "":
		data, err := json.MarshalIndent(digest, "", "  ")
		return data, "application/json", err
	}
	return nil, "", fmt.Errorf("unknown report format %q", format)
}

// ListReports returns the report files of a church.
func (s *Service) ListReports(ctx context.Context, churchID string) ([]blob.Object, error) {
	var objects []blob.Object
	err := s.run(ctx, "list_reports", churchID, func(ctx context.Context) (string, error) {
		var err error
		objects, err = s.blobs.List(ctx, reportPrefix(churchID))
		return churchID, err
	})
	return objects, err
}

// ReadReport decodes a report file written by WriteReport.
func (s *Service) ReadReport(ctx context.Context, key string) (domain.ReportDigest, error) {
	var digest domain.ReportDigest
	data, _, err := s.blobs.Read(ctx, key)
	if err != nil {
		return digest, err
	}
	switch path.Ext(key) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &digest)
	default:
		err = json.Unmarshal(data, &digest)
	}
	if err != nil {
		return digest, fmt.Errorf("decode report %s: %w", key, err)
	}
	return digest, nil
}
