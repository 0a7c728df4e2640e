package predict

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/VisionServe/internal/budget"
	"github.com/turtacn/VisionServe/internal/content"
	domainpredict "github.com/turtacn/VisionServe/internal/domain/predict"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/VisionServe/internal/notify"
	"github.com/turtacn/VisionServe/internal/serializer"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// Config tunes the service.
type Config struct {
	// RequestTimeout is the wall-clock budget for one request, shared by
	// every fetch, inference and upload it performs.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Response is the synchronous answer to one request.  File carries a
// base64 rendering of the result artifact when a file task has no upload
// destination; MIME names its content type.
type Response struct {
	RequestID string
	Results   []interface{}
	Metrics   interface{}
	Count     int
	File      string
	MIME      string
}

// Service runs prediction requests.
type Service struct {
	registry    *Registry
	contentDeps content.Deps
	emitter     *notify.Emitter
	metrics     *prometheus.PipelineMetrics
	logger      logging.Logger
	timeout     time.Duration
}

// NewService assembles the orchestrator.  Emitter and metrics may be nil;
// emission and observation are then skipped.
func NewService(cfg Config, registry *Registry, deps content.Deps, emitter *notify.Emitter, metrics *prometheus.PipelineMetrics, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{
		registry:    registry,
		contentDeps: deps,
		emitter:     emitter,
		metrics:     metrics,
		logger:      log,
		timeout:     cfg.RequestTimeout,
	}
}

// Process runs one request to a terminal state.  Exactly one audit record
// is emitted whatever the outcome; asynchronous requests additionally get
// a metrics record.
func (s *Service) Process(ctx context.Context, req *domainpredict.Request) (*Response, error) {
	return s.ProcessUploads(ctx, req, nil)
}

// ProcessUploads is Process with caller-supplied in-memory payloads that
// stand in for the request's input URLs; nothing is fetched when uploads
// is non-empty.
func (s *Service) ProcessUploads(ctx context.Context, req *domainpredict.Request, uploads [][]byte) (*Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	start := time.Now()
	log := s.logger.With(
		logging.String("request_id", req.RequestID),
		logging.String("task", req.TaskName))

	b := budget.None()
	if s.timeout > 0 {
		b = budget.Within(s.timeout)
	}
	ctx, cancel := b.Context(ctx)
	defer cancel()

	resp, err := s.process(ctx, b, req, uploads, log)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("Request failed", logging.Duration("elapsed", elapsed), logging.Err(err))
		s.finish(ctx, req, s.failureCallback(req, err), "error", elapsed)
		return nil, err
	}

	log.Info("Request finished",
		logging.Duration("elapsed", elapsed),
		logging.Int("count", resp.Count))
	s.finish(ctx, req, domainpredict.Callback{
		ID:       req.RequestID,
		Success:  true,
		TaskName: req.TaskName,
		Count:    resp.Count,
		Results:  resp.Results,
		Metrics:  resp.Metrics,
		TenantID: req.TenantID,
	}, "success", elapsed)
	return resp, nil
}

func (s *Service) process(ctx context.Context, b budget.Budget, req *domainpredict.Request, uploads [][]byte, log logging.Logger) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	task, err := s.registry.Lookup(req.TaskName)
	if err != nil {
		return nil, err
	}
	handler, err := content.NewHandler(req, s.contentDeps)
	if err != nil {
		return nil, err
	}

	if err := b.Check(); err != nil {
		return nil, err
	}
	items, fps, err := handler.Fetch(ctx, uploads)
	if err != nil {
		return nil, err
	}

	params := mergeParams(task.Defaults, req.Params)
	if fps > 0 {
		params["fps"] = fps
	}

	if err := b.Check(); err != nil {
		return nil, err
	}
	outcome, err := task.Predictor.Predict(ctx, items, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInferenceFailed, "inference failed")
	}

	count := 1
	if outcome.HasCount {
		count = outcome.Count
	}

	resp := &Response{
		RequestID: req.RequestID,
		Results:   outcome.Results,
		Metrics:   outcome.Metrics,
		Count:     count,
	}

	s.uploadSideChannels(ctx, req, outcome.Results, log)

	if req.Mode == domainpredict.ModeFile {
		if err := b.Check(); err != nil {
			return nil, err
		}
		if err := s.shapeFileOutput(ctx, req, handler, outcome.Results, resp, log); err != nil {
			return nil, err
		}
	} else if s.shouldRender(req, task) {
		if err := b.Check(); err != nil {
			return nil, err
		}
		rendered, err := task.Renderer.Render(ctx, items, outcome.Results, task.DrawArgs)
		if err != nil {
			return nil, err
		}
		flags, err := handler.UploadResults(ctx, rendered)
		if err != nil {
			return nil, err
		}
		for i, ok := range flags {
			if !ok {
				log.Warn("Result upload unsuccessful", logging.Int("index", i))
			}
		}
	}

	return resp, nil
}

// shapeFileOutput uploads each result blob to its paired destination and
// shapes the synchronous answer: with no output MIME configured the first
// result is parsed as JSON and returned inline, otherwise it rides home
// base64-encoded under the configured MIME.
func (s *Service) shapeFileOutput(ctx context.Context, req *domainpredict.Request, handler content.Handler, results []interface{}, resp *Response, log logging.Logger) error {
	n := len(results)
	if len(req.ResultsFiles) < n {
		n = len(req.ResultsFiles)
	}
	if n > 0 {
		items := make([]content.Item, n)
		for i := 0; i < n; i++ {
			blob, err := blobOf(results[i])
			if err != nil {
				return err
			}
			items[i] = content.Item{Data: blob, ContentType: req.ResultsFiles[i].ContentType}
		}
		flags, err := handler.UploadResults(ctx, items)
		if err != nil {
			return err
		}
		for i, ok := range flags {
			if !ok {
				log.Warn("Result file upload unsuccessful", logging.Int("index", i))
			}
		}
	}

	if len(results) == 0 {
		return nil
	}
	outputMIME := content.MIMEJSON
	if len(req.OutputMIMEs) > 0 {
		outputMIME = req.OutputMIMEs[0]
	}
	blob, err := blobOf(results[0])
	if err != nil {
		return err
	}
	if outputMIME == content.MIMEJSON {
		var decoded interface{}
		if err := json.Unmarshal(blob, &decoded); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "result is not valid json")
		}
		if list, ok := decoded.([]interface{}); ok {
			resp.Results = list
		} else {
			resp.Results = []interface{}{decoded}
		}
		return nil
	}
	resp.File = base64.StdEncoding.EncodeToString(blob)
	resp.MIME = outputMIME
	return nil
}

// blobOf turns one result into the bytes stored at its destination.
// Predictors in file mode are expected to return byte payloads; anything
// else is serialized as JSON.
func blobOf(result interface{}) ([]byte, error) {
	switch v := result.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot serialize result")
		}
		return data, nil
	}
}

// shouldRender decides whether drawn artifacts are wanted.  Only the
// visual modes draw; file results are uploaded as-is.  A render happens
// when any input asks for a results_to_show upload.
func (s *Service) shouldRender(req *domainpredict.Request, task *Task) bool {
	if task.Renderer == nil || req.Mode == domainpredict.ModeFile {
		return false
	}
	if req.ResultsToShow {
		return true
	}
	for _, in := range req.Data {
		if in.ResultsToShow != nil {
			return true
		}
	}
	return false
}

// uploadSideChannels stores JSON and CSV renderings of the raw result
// list at every input that declares a destination.  Failures are logged,
// never fatal.
func (s *Service) uploadSideChannels(ctx context.Context, req *domainpredict.Request, results []interface{}, log logging.Logger) {
	if len(results) == 0 {
		return
	}
	for _, in := range req.Data {
		if in.ResultsJSONUploadURL != "" {
			payload, err := json.Marshal(results)
			if err == nil {
				err = s.contentDeps.Transport.Put(ctx, in.ResultsJSONUploadURL, payload, content.MIMEJSON)
			}
			if err != nil {
				log.Warn("Results JSON upload failed",
					logging.String("url", in.ResultsJSONUploadURL), logging.Err(err))
				if s.metrics != nil {
					s.metrics.UploadFailures.WithLabelValues("json").Inc()
				}
			}
		}

		if in.ResultsCSVUploadURL != "" {
			payload, err := renderCSV(results)
			if err == nil {
				err = s.contentDeps.Transport.Put(ctx, in.ResultsCSVUploadURL, payload, content.MIMECSV)
			}
			if err != nil {
				log.Warn("Results CSV upload failed",
					logging.String("url", in.ResultsCSVUploadURL), logging.Err(err))
				if s.metrics != nil {
					s.metrics.UploadFailures.WithLabelValues("csv").Inc()
				}
			}
		}
	}
}

// renderCSV flattens the result rows into the tabular layout.
func renderCSV(rows []interface{}) ([]byte, error) {
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeSerialization, "no rows to serialize")
	}

	fieldnames := append([]string{"id"}, serializer.GenerateFieldNames(rows[0])...)
	var buf bytes.Buffer
	w, err := serializer.NewWriter(&buf, fieldnames)
	if err != nil {
		return nil, err
	}
	if err := w.WriteHeader(); err != nil {
		return nil, err
	}
	if err := w.WriteRowsWithID(rows, 0); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mergeParams(defaults, params map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(params))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// failureCallback shapes the terminal record for a failed request.
func (s *Service) failureCallback(req *domainpredict.Request, err error) domainpredict.Callback {
	return domainpredict.Callback{
		ID:       req.RequestID,
		Success:  false,
		TaskName: req.TaskName,
		Count:    0,
		Results: []interface{}{map[string]interface{}{
			"code":  string(errors.GetCode(err)),
			"error": err.Error(),
		}},
		TenantID: req.TenantID,
	}
}

// finish emits terminal records and observes request metrics.  Emission
// runs on a fresh context so an exhausted budget cannot suppress it.
func (s *Service) finish(ctx context.Context, req *domainpredict.Request, cb domainpredict.Callback, outcome string, elapsed time.Duration) {
	if s.emitter != nil {
		emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.emitter.EmitAudit(emitCtx, cb)
		if req.Async() {
			s.emitter.EmitMetrics(emitCtx, cb)
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveRequest(req.TaskName, req.Mode, outcome, cb.Count, elapsed)
	}
}
