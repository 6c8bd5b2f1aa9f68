package response

import (
	"encoding/json"
	"testing"
)

func TestCalculatePagination(t *testing.T) {
	tests := []struct {
		name        string
		page, limit int
		total       int64
		wantPage    int
		wantPerPage int
		wantPages   int
	}{
		{"first page", 1, 10, 95, 1, 10, 10},
		{"exact fit", 2, 10, 100, 2, 10, 10},
		{"zero page defaults to 1", 0, 10, 5, 1, 10, 1},
		{"zero limit defaults to 10", 3, 0, 25, 3, 10, 3},
		{"limit capped at 100", 1, 500, 1000, 1, 100, 10},
		{"empty result", 1, 10, 0, 1, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := CalculatePagination(tt.page, tt.limit, tt.total)
			if meta.CurrentPage != tt.wantPage {
				t.Errorf("CurrentPage = %d, want %d", meta.CurrentPage, tt.wantPage)
			}
			if meta.PerPage != tt.wantPerPage {
				t.Errorf("PerPage = %d, want %d", meta.PerPage, tt.wantPerPage)
			}
			if meta.Total != tt.total {
				t.Errorf("Total = %d, want %d", meta.Total, tt.total)
			}
			if meta.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", meta.TotalPages, tt.wantPages)
			}
		})
	}
}

func TestPaginationMetaJSONShape(t *testing.T) {
	meta := CalculatePagination(2, 20, 45)
	raw, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"current_page", "per_page", "total", "total_pages"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing %q in pagination JSON", key)
		}
	}
}
