package dto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCells_UnmarshalJSON(t *testing.T) {
	var c Cells
	if err := json.Unmarshal([]byte(`{"FREQ": 100.5, "STN_NAME": "Alpha", "X": null, "B": true}`), &c); err != nil {
		t.Fatal(err)
	}
	want := Cells{"FREQ": "100.5", "STN_NAME": "Alpha", "X": "", "B": "true"}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("Cells mismatch (-want +got):\n%s", diff)
	}
	if err := json.Unmarshal([]byte(`{"A": [1]}`), &c); err == nil {
		t.Error("nested value accepted")
	}
}

func TestGridRequest(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		query  string
		length int
	}{
		{"Object", `{"draw": 2, "search": {"value": " alpha "}}`, "alpha", 10},
		{"String", `{"search": "beta", "length": 5}`, "beta", 5},
		{"Alt", `{"search_value": "gamma", "length": -1}`, "gamma", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r GridRequest
			if err := json.Unmarshal([]byte(tt.body), &r); err != nil {
				t.Fatal(err)
			}
			if got := r.Query(); got != tt.query {
				t.Errorf("Query() = %q, want %q", got, tt.query)
			}
			if got := r.PageLength(10); got != tt.length {
				t.Errorf("PageLength() = %d, want %d", got, tt.length)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	zero := 0
	tests := []struct {
		name string
		req  Validatable
		want ErrorCode
	}{
		{"LoginOK", &LoginRequest{Username: "ani", Password: "pw"}, ""},
		{"LoginNoUser", &LoginRequest{Password: "pw"}, ErrorCodeMissingField},
		{"LoginNoPassword", &LoginRequest{Username: "ani"}, ErrorCodeMissingField},
		{"StationZero", &StationRequest{}, ErrorCodeValidationFailed},
		{"UpdateStationNoData", &UpdateStationRequest{No: 1}, ErrorCodeMissingField},
		{"UpdateSavedNoIndex", &UpdateSavedRequest{}, ErrorCodeMissingField},
		{"UpdateSavedOK", &UpdateSavedRequest{Index: &zero}, ""},
		{"DeleteSavedNoIndex", &DeleteSavedRequest{}, ErrorCodeMissingField},
		{"GridNegativeDraw", &GridRequest{Draw: -1}, ErrorCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Code() != tt.want {
				t.Errorf("Validate() = %v, want code %s", err, tt.want)
			}
		})
	}
}
