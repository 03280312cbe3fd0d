// Defines the request types of the API.

package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Validatable is the constraint of the Wrap handler inputs.
type Validatable interface {
	Validate() error
}

// Cells is a row keyed by column name. Decoding accepts strings, numbers,
// booleans and null, which all end up as strings.
type Cells map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cells) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		*c = nil
		return nil
	}
	out := make(Cells, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = v
		case float64:
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(v)
		default:
			return fmt.Errorf("column %q: unsupported value %v", k, v)
		}
	}
	*c = out
	return nil
}

// GridSearch is the DataTables search object of a JSON grid request.
type GridSearch struct {
	Value string `json:"value"`
}

// UnmarshalJSON accepts either {"value": "..."} or a bare string.
func (g *GridSearch) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &g.Value)
	}
	type plain GridSearch
	return json.Unmarshal(b, (*plain)(g))
}

// GridRequest carries the DataTables paging parameters. They are bound from
// the query string, a form body or a JSON body.
type GridRequest struct {
	Draw   int  `json:"draw" query:"draw"`
	Start  int  `json:"start" query:"start"`
	Length *int `json:"length,omitempty" query:"length"`

	Search GridSearch `json:"search"`

	// Columns and Order are sent by DataTables and ignored.
	Columns json.RawMessage `json:"columns,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`

	SearchValue string `json:"-" query:"search[value]"`
	SearchAlt   string `json:"search_value,omitempty" query:"search_value"`
}

// Validate implements dto.Validatable.
func (r *GridRequest) Validate() error {
	if r.Draw < 0 {
		return BadRequest("draw must be non-negative")
	}
	return nil
}

// Query returns the search string, whichever way it was sent.
func (r *GridRequest) Query() string {
	for _, s := range []string{r.SearchValue, r.Search.Value, r.SearchAlt} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// PageLength returns the requested length or def when none was sent.
func (r *GridRequest) PageLength(def int) int {
	if r.Length == nil {
		return def
	}
	return *r.Length
}

// InspectionGridRequest is the grid request of the field-scoped grid.
type InspectionGridRequest struct {
	GridRequest

	ClientID    string `query:"client_id"`
	ClientName  string `query:"client_name"`
	LinkID      string `query:"link_id"`
	StationName string `query:"stn_name"`
	Counterpart string `query:"stasiun_lawan"`
	Freq        string `query:"freq"`
	City        string `query:"city"`
}

// Validate implements dto.Validatable.
func (r *InspectionGridRequest) Validate() error {
	return r.GridRequest.Validate()
}

// Filters returns the column filters keyed by parameter name.
func (r *InspectionGridRequest) Filters() map[string]string {
	return map[string]string{
		"client_id":     r.ClientID,
		"client_name":   r.ClientName,
		"link_id":       r.LinkID,
		"stn_name":      r.StationName,
		"stasiun_lawan": r.Counterpart,
		"freq":          r.Freq,
		"city":          r.City,
	}
}

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate implements dto.Validatable.
func (r *HealthRequest) Validate() error {
	return nil
}

// LoginRequest is a request to log in.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate implements dto.Validatable.
func (r *LoginRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return MissingField("username")
	}
	if r.Password == "" {
		return MissingField("password")
	}
	return nil
}

// LogoutRequest is a request to end the current session.
type LogoutRequest struct{}

// Validate implements dto.Validatable.
func (r *LogoutRequest) Validate() error {
	return nil
}

// MeRequest is a request for the current user.
type MeRequest struct{}

// Validate implements dto.Validatable.
func (r *MeRequest) Validate() error {
	return nil
}

// StationRequest addresses one master table row by its 1-based number.
type StationRequest struct {
	No int `path:"no"`
}

// Validate implements dto.Validatable.
func (r *StationRequest) Validate() error {
	if r.No < 1 {
		return BadRequest("invalid row number")
	}
	return nil
}

// UpdateStationRequest replaces the cells of one master table row.
type UpdateStationRequest struct {
	No   int   `path:"no" json:"-"`
	Data Cells `json:"data"`
}

// Validate implements dto.Validatable.
func (r *UpdateStationRequest) Validate() error {
	if r.No < 1 {
		return BadRequest("invalid row number")
	}
	if r.Data == nil {
		return MissingField("data")
	}
	return nil
}

// DebugRequest is a request for master table diagnostics.
type DebugRequest struct{}

// Validate implements dto.Validatable.
func (r *DebugRequest) Validate() error {
	return nil
}

// ListSavedRequest is a request for the saved subset.
type ListSavedRequest struct{}

// Validate implements dto.Validatable.
func (r *ListSavedRequest) Validate() error {
	return nil
}

// SaveRequest promotes rows into the saved subset.
type SaveRequest struct {
	Rows []Cells `json:"rows"`
}

// Validate implements dto.Validatable.
func (r *SaveRequest) Validate() error {
	return nil
}

// UpdateSavedRequest replaces one saved row by 0-based index.
type UpdateSavedRequest struct {
	Index *int  `json:"index"`
	Data  Cells `json:"data"`
}

// Validate implements dto.Validatable.
func (r *UpdateSavedRequest) Validate() error {
	if r.Index == nil {
		return MissingField("index")
	}
	return nil
}

// DeleteSavedRequest removes one saved row by 0-based index.
type DeleteSavedRequest struct {
	Index *int `json:"index"`
}

// Validate implements dto.Validatable.
func (r *DeleteSavedRequest) Validate() error {
	if r.Index == nil {
		return MissingField("index")
	}
	return nil
}

// ClearSavedRequest deletes the saved subset.
type ClearSavedRequest struct{}

// Validate implements dto.Validatable.
func (r *ClearSavedRequest) Validate() error {
	return nil
}
