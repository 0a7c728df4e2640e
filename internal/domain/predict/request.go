// Package predict defines the prediction request/callback domain model and
// its structural validation.  No I/O lives here; the application layer
// consumes these types after the excluded HTTP front end has decoded the
// inbound payload.
package predict

import (
	"strings"

	"github.com/turtacn/VisionServe/pkg/errors"
)

// Request modes.  The mode governs the input/output shape of the request.
const (
	// ModeSimple takes one or more images (or one video split into frames)
	// and produces JSON results.
	ModeSimple = "simple"
	// ModeImage takes one image and produces one image.
	// Deprecated: use ModeFile.
	ModeImage = "image"
	// ModeFile passes opaque files to the algorithm; output MIME is
	// configured per algorithm.
	ModeFile = "file"
)

// AllModes lists every known request mode.
var AllModes = []string{ModeSimple, ModeImage, ModeFile}

// Destination is a resource locator plus the content type to render there.
type Destination struct {
	URL         string `json:"url"`
	ContentType string `json:"content-type"`
}

// Input describes one remote payload plus its per-input result destinations.
type Input struct {
	URL                  string       `json:"url"`
	ContentType          string       `json:"content-type"`
	ResultsJSONUploadURL string       `json:"results_json_upload_url,omitempty"`
	ResultsCSVUploadURL  string       `json:"results_csv_upload_url,omitempty"`
	ResultsToShow        *Destination `json:"results_to_show,omitempty"`
}

// IsVideo reports whether the declared content type is a video type.
// Content type is the sole dispatch key for handler selection in ModeSimple.
func (in Input) IsVideo() bool {
	return strings.HasPrefix(in.ContentType, "video/")
}

// IsImage reports whether the declared content type is an image type.
func (in Input) IsImage() bool {
	return strings.HasPrefix(in.ContentType, "image/")
}

// Request is one inbound prediction request.  It is constructed once per
// call and treated as immutable after validation.
type Request struct {
	RequestID     string                 `json:"request_id,omitempty"`
	TenantID      string                 `json:"tenant_uuid,omitempty"`
	TaskName      string                 `json:"task_name"`
	Mode          string                 `json:"algorithm_type"`
	ResultsToShow bool                   `json:"results_to_show,omitempty"`
	ResultsFiles  []Destination          `json:"results_files_upload_url,omitempty"`
	OutputMIMEs   []string               `json:"output_mimes,omitempty"`
	Options       map[string]interface{} `json:"options,omitempty"`
	Params        map[string]interface{} `json:"params,omitempty"`
	Data          []Input                `json:"data"`
	CallbackURL   string                 `json:"callback_url,omitempty"`
}

// Async reports whether the request follows the asynchronous path.  The
// presence of a callback URL is the sole selector; at this layer the only
// behavioral difference is the additional metrics emission.
func (r *Request) Async() bool {
	return r.CallbackURL != ""
}

// Validate checks the structural rules of the request.  Task-name
// resolution is the orchestrator's concern; everything here fails with an
// InvalidParameter error naming the offending field.
func (r *Request) Validate() error {
	switch r.Mode {
	case ModeSimple, ModeImage, ModeFile:
	default:
		return errors.InvalidParam("invalid algorithm_type").WithDetail("algorithm_type=" + r.Mode)
	}
	if r.Mode == ModeFile && r.ResultsToShow {
		return errors.InvalidParam("algorithm_type:file not supports results_to_show")
	}
	if len(r.Data) == 0 {
		return errors.InvalidParam("data is empty")
	}
	if len(r.Data) > 1 {
		if r.Mode == ModeImage {
			return errors.InvalidParam("algorithm_type:image not supports multi files")
		}
		if r.Mode == ModeSimple && r.Data[0].IsVideo() {
			return errors.InvalidParam("algorithm_type:simple, video only supports 1 data")
		}
	}
	return nil
}

// VideoOption returns options.video.<name>, or nil when absent.
func (r *Request) VideoOption(name string) interface{} {
	video, ok := r.Options["video"].(map[string]interface{})
	if !ok {
		return nil
	}
	return video[name]
}
