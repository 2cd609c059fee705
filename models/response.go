package models

// Response represents a generic API response structure.
type Response struct {
	Success      int         `json:"success"`
	ErrorCode    string      `json:"error_code,omitempty"`
	ErrorDetails string      `json:"error_details,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

// Flash carries one-shot notices between a redirect and the next page.
type Flash struct {
	Notice string `json:"notice,omitempty"`
	Alert  string `json:"alert,omitempty"`
}

// Empty reports whether there is nothing to show.
func (f Flash) Empty() bool {
	return f.Notice == "" && f.Alert == ""
}
