/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Field names are part
  of the contract with the workflow tooling that calls this service and
  must not change.

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response bodies
  - *DTO: Items nested in responses

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// GenerateByIDResponse is returned by POST /generate-report-by-id.
type GenerateByIDResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	InvestorID   int64  `json:"investor_id"`
	ReportID     string `json:"report_id"`
	PDFURL       string `json:"pdf_url"`
	HTMLURL      string `json:"html_url"`
	PDFAvailable bool   `json:"pdf_available"`
}

// GeneratedReportDTO describes one report produced from an uploaded file.
type GeneratedReportDTO struct {
	InvestorName string `json:"investor_name"`
	ReportID     string `json:"report_id"`
	HTMLFile     string `json:"html_file"`
	PDFFile      string `json:"pdf_file,omitempty"`
}

// RowErrorDTO describes a row of an uploaded file that produced no report.
type RowErrorDTO struct {
	InvestorName string `json:"investor_name"`
	Error        string `json:"error"`
}

// UploadResponse is returned by POST /generate-report.
type UploadResponse struct {
	Success bool                 `json:"success"`
	Reports []GeneratedReportDTO `json:"reports"`
	Errors  []RowErrorDTO        `json:"errors"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
