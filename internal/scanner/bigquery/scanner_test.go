package bigquery_test

import (
	"context"
	"testing"

	"github.com/harperz567/food-app-qa/internal/scanner/bigquery"
)

// TestBigQueryScanner_ConfigValidation proves the scanner requires a
// service binding, a project, and a dataset before creating a client.
func TestBigQueryScanner_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		config bigquery.Config
	}{
		{"missing service", bigquery.Config{ProjectID: "harpers-kitchen", Dataset: "food_catalog"}},
		{"missing project", bigquery.Config{Service: "foodcatalogservice", Dataset: "food_catalog"}},
		{"missing dataset", bigquery.Config{Service: "foodcatalogservice", ProjectID: "harpers-kitchen"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := bigquery.NewScanner(context.Background(), tt.config); err == nil {
				t.Errorf("NewScanner accepted config %+v", tt.config)
			}
		})
	}
}

// TestBigQueryScanner_WithoutConnect proves the client-free constructor
// identifies itself and fails loudly on use.
func TestBigQueryScanner_WithoutConnect(t *testing.T) {
	s := bigquery.NewScannerWithoutConnect(bigquery.Config{
		Service:   "foodcatalogservice",
		ProjectID: "harpers-kitchen",
		Dataset:   "food_catalog",
	})

	if s.Name() != "bigquery" || s.Service() != "foodcatalogservice" {
		t.Errorf("Name/Service = %s/%s, want bigquery/foodcatalogservice", s.Name(), s.Service())
	}
	if err := s.Ping(context.Background()); err == nil {
		t.Error("Ping succeeded without a client")
	}
	if _, err := s.ListColumns(context.Background()); err == nil {
		t.Error("ListColumns succeeded without a client")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
}
