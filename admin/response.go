package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/caasmo/banlog"
	"github.com/caasmo/banlog/addr"
	"github.com/caasmo/banlog/index"
	"github.com/caasmo/banlog/store"
)

// Response codes
const (
	CodeOk                = "ok"
	CodeErrorUnavailable  = "err_unavailable"
	CodeErrorDuplicate    = "err_duplicate"
	CodeErrorNotFound     = "err_not_found"
	CodeErrorInvalidAddr  = "err_invalid_address"
	CodeErrorInvalidName  = "err_invalid_name"
	CodeErrorIO           = "err_io"
	CodeErrorInvalidInput = "err_invalid_input"
	CodeErrorInternal     = "err_internal"
)

// JsonBasic contains the fields every response carries.
type JsonBasic struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JsonWithData is a response with a payload.
type JsonWithData struct {
	JsonBasic
	Data any `json:"data,omitempty"`
}

// jsonReply is JsonWithData as the client reads it.
type jsonReply struct {
	JsonBasic
	Data json.RawMessage `json:"data,omitempty"`
}

type jsonEntry struct {
	Key    uint32 `json:"key"`
	Subnet string `json:"subnet"`
	Name   string `json:"name"`
}

func toJsonEntry(e index.Entry) jsonEntry {
	return jsonEntry{Key: uint32(e.Key), Subnet: e.Key.String(), Name: e.Name}
}

func (j jsonEntry) entry() index.Entry {
	return index.Entry{Key: addr.Key(j.Key), Name: j.Name}
}

type statusData struct {
	Available bool `json:"available"`
	Entries   int  `json:"entries"`
}

type addRequest struct {
	Name string `json:"name"`
}

type importRequest struct {
	Path string `json:"path"`
}

type importData struct {
	Merged int `json:"merged"`
}

// sentinels maps error codes to the errors the console checks with
// errors.Is.
var sentinels = []struct {
	code   string
	status int
	err    error
}{
	{CodeErrorUnavailable, http.StatusServiceUnavailable, banlog.ErrUnavailable},
	{CodeErrorDuplicate, http.StatusConflict, index.ErrDuplicateKey},
	{CodeErrorNotFound, http.StatusNotFound, index.ErrNotFound},
	{CodeErrorInvalidAddr, http.StatusBadRequest, addr.ErrInvalidAddress},
	{CodeErrorInvalidName, http.StatusBadRequest, addr.ErrInvalidName},
	{CodeErrorIO, http.StatusInternalServerError, store.ErrIO},
}

func classify(err error) (status int, code string) {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, s.code
		}
	}
	return http.StatusInternalServerError, CodeErrorInternal
}

func writeJson(w http.ResponseWriter, status int, code, message string, data any) {
	resp := JsonWithData{JsonBasic: JsonBasic{Status: status, Code: code, Message: message}, Data: data}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeJsonOk(w http.ResponseWriter, status int, data any) {
	writeJson(w, status, CodeOk, "", data)
}

// writeJsonError reports err with the code of the sentinel it wraps; data
// may carry partial results.
func writeJsonError(w http.ResponseWriter, err error, data any) {
	status, code := classify(err)
	writeJson(w, status, code, err.Error(), data)
}

// remoteError carries the server's message and unwraps to the sentinel for
// its code, so errors.Is behaves as it does locally.
type remoteError struct {
	message string
	err     error
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.err }

func decodeError(resp JsonBasic) error {
	for _, s := range sentinels {
		if s.code == resp.Code {
			return &remoteError{message: resp.Message, err: s.err}
		}
	}
	return &remoteError{message: resp.Message}
}
