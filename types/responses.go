package types

// Outbound event values.
const (
	// ResponseEventComplete is the event value of every transfer response.
	ResponseEventComplete = "complete"
	// ResponseEventInitialize is the event value of errors raised before the
	// event loop starts (bad command line, bad config).
	ResponseEventInitialize = "initialize"
)

// InitErrorOID is the oid reported with initialize errors.
const InitErrorOID = "-1"

// Error codes carried in ErrorResponse.Error.Code.
const (
	// ErrorCodeTransfer is used for every failed transfer and initialize error.
	ErrorCodeTransfer uint64 = 1
)

// Response is one outbound message. Exactly one is written per Init, Upload
// and Download event; none for Terminate.
type Response interface {
	isResponse()
}

// EmptyResponse acknowledges Init. Encodes as {}.
type EmptyResponse struct{}

// UploadResponse reports a completed upload.
type UploadResponse struct {
	Event string `json:"event"`
	OID   string `json:"oid"`
}

// DownloadResponse reports a completed download and where the object landed.
type DownloadResponse struct {
	Event string `json:"event"`
	OID   string `json:"oid"`
	Path  string `json:"path"`
}

// ErrorBody is the error object of an ErrorResponse.
type ErrorBody struct {
	Code    uint64 `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse reports a failed transfer or an initialize failure.
type ErrorResponse struct {
	Event string    `json:"event"`
	OID   string    `json:"oid"`
	Error ErrorBody `json:"error"`
}

func (EmptyResponse) isResponse()    {}
func (UploadResponse) isResponse()   {}
func (DownloadResponse) isResponse() {}
func (ErrorResponse) isResponse()    {}

// NewUploadComplete builds the success response for an upload.
func NewUploadComplete(oid string) UploadResponse {
	return UploadResponse{Event: ResponseEventComplete, OID: oid}
}

// NewDownloadComplete builds the success response for a download.
func NewDownloadComplete(oid, path string) DownloadResponse {
	return DownloadResponse{Event: ResponseEventComplete, OID: oid, Path: path}
}

// NewTransferError builds the failure response for a transfer.
func NewTransferError(oid, message string) ErrorResponse {
	return ErrorResponse{
		Event: ResponseEventComplete,
		OID:   oid,
		Error: ErrorBody{Code: ErrorCodeTransfer, Message: message},
	}
}

// NewInitError builds the response for a failure before the event loop.
func NewInitError(message string) ErrorResponse {
	return ErrorResponse{
		Event: ResponseEventInitialize,
		OID:   InitErrorOID,
		Error: ErrorBody{Code: ErrorCodeTransfer, Message: message},
	}
}
