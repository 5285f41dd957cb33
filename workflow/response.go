package workflow

// Status values for DriverResponse.Status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DriverResponse is the result of invoking a Driver on a Node. Only the
// fields the kernel reads (Status, Output, Final, State, Route, Parallel,
// HadError, Error) are interpreted by the core; everything else is carried
// through Extras for driver-specific consumption (e.g. tool_call_log,
// iterations, previous/stored for the memory driver).
type DriverResponse struct {
	Status    string
	Output    any
	Final     any
	State     map[string]any
	Route     string
	Parallel  bool
	Error     string
	HadError  bool
	ErrorType string
	Extras    map[string]any
}

// OK reports whether the response's Status is "ok".
func (r DriverResponse) OK() bool { return r.Status == StatusOK }

// HasOutput reports whether the response carries an Output value that
// should become the next context.Input (spec.md §3 invariant 5).
func (r DriverResponse) HasOutput() bool { return r.Output != nil }

// HasFinal reports whether the response carries a Final value.
func (r DriverResponse) HasFinal() bool { return r.Final != nil }

// ErrorResponse builds the standard error DriverResponse the Driver Registry
// returns for dispatch failures (missing driver, panics converted to
// errors) per spec.md §4.2.
func ErrorResponse(msg string) DriverResponse {
	return DriverResponse{Status: StatusError, Error: msg}
}
