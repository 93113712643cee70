// Package submission turns a posted form into validated responses. Nothing is
// written unless the whole payload is valid.
package submission

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"interview-go/internal/paths"
	"interview-go/internal/questions"
	"interview-go/internal/upload"
)

const (
	MaxImages = 12
	// DefaultWriteLimit bounds concurrent image writes for one submission.
	DefaultWriteLimit = 4
)

var ErrTooManyImages = fmt.Errorf("Too many images (max %d)", MaxImages)

// FieldError is a rejection naming the question id that caused it.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Request is the body of POST /submit.
type Request struct {
	Token     string         `json:"token"`
	Responses []RawResponse  `json:"responses"`
	Images    []upload.Image `json:"images"`
}

// RawResponse is a response item before its shape has been checked against
// the question type.
type RawResponse struct {
	ID          string `json:"id"`
	Value       Value  `json:"value"`
	Attachments Value  `json:"attachments"`
}

// ResponseItem is the validated answer for one question.
type ResponseItem struct {
	ID          string   `json:"id"`
	Value       Value    `json:"value"`
	Attachments []string `json:"attachments,omitempty"`
}

// Saver persists one decoded upload and returns where it was written.
type Saver interface {
	Save(filename string, data []byte) (string, error)
}

// Result is a processed submission.
type Result struct {
	Responses     []ResponseItem
	UploadedBytes int64
}

type Processor struct {
	index      map[string]questions.Question
	saver      Saver
	writeLimit int
}

// NewProcessor validates submissions against set and writes uploads with
// saver.
func NewProcessor(set *questions.Set, saver Saver) *Processor {
	return &Processor{
		index:      set.Index(),
		saver:      saver,
		writeLimit: DefaultWriteLimit,
	}
}

// Process validates every response, then every image, and only then writes
// the images and merges their paths into the responses in payload order.
// The first failure is returned as a *FieldError or ErrTooManyImages.
func (p *Processor) Process(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Images) > MaxImages {
		return nil, ErrTooManyImages
	}

	responses := make([]ResponseItem, 0, len(req.Responses)+len(req.Images))
	for _, raw := range req.Responses {
		item, err := p.checkResponse(raw)
		if err != nil {
			return nil, err
		}
		responses = append(responses, item)
	}

	decoded := make([]*upload.Decoded, len(req.Images))
	for i, img := range req.Images {
		d, err := p.checkImage(img)
		if err != nil {
			return nil, err
		}
		decoded[i] = d
	}

	files, err := p.write(ctx, decoded)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for i, d := range decoded {
		responses = merge(responses, d, files[i])
		result.UploadedBytes += int64(len(d.Bytes))
	}
	result.Responses = responses
	return result, nil
}

func (p *Processor) checkResponse(raw RawResponse) (ResponseItem, error) {
	q, ok := p.index[raw.ID]
	if !ok {
		return ResponseItem{}, fieldErr(raw.ID, "Unknown question id: %s", raw.ID)
	}

	item := ResponseItem{ID: raw.ID}
	invalid := fieldErr(raw.ID, "Invalid response value for %s", raw.ID)

	switch q.Type {
	case questions.TypeMulti:
		if !raw.Value.IsList() {
			return ResponseItem{}, invalid
		}
		item.Value = raw.Value
	case questions.TypeImage:
		switch {
		case raw.Value.IsList():
			item.Value = List(paths.ExpandAll(raw.Value.Items())...)
		case raw.Value.IsMissing():
			item.Value = Text("")
		case raw.Value.IsString() && raw.Value.String() == "":
			item.Value = Text("")
		default:
			return ResponseItem{}, invalid
		}
	default:
		if !raw.Value.IsString() {
			return ResponseItem{}, invalid
		}
		item.Value = raw.Value
	}

	switch {
	case raw.Attachments.IsMissing():
	case raw.Attachments.IsList():
		item.Attachments = paths.ExpandAll(raw.Attachments.Items())
	default:
		return ResponseItem{}, fieldErr(raw.ID, "Invalid attachments for %s", raw.ID)
	}
	return item, nil
}

func (p *Processor) checkImage(img upload.Image) (*upload.Decoded, error) {
	if _, ok := p.index[img.ID]; !ok {
		return nil, fieldErr(img.ID, "Unknown question id: %s", img.ID)
	}
	if img.Filename == "" || img.MimeType == "" || img.Data == "" {
		return nil, fieldErr(img.ID, "Invalid image payload")
	}
	d, err := upload.Decode(img)
	if err != nil {
		var upErr *upload.Error
		if errors.As(err, &upErr) {
			return nil, &FieldError{Field: upErr.Field, Message: upErr.Message, Err: err}
		}
		return nil, &FieldError{Field: img.ID, Message: err.Error(), Err: err}
	}
	return d, nil
}

// write saves every image with bounded concurrency. On failure the files
// already written are removed.
func (p *Processor) write(ctx context.Context, decoded []*upload.Decoded) ([]string, error) {
	files := make([]string, len(decoded))
	if len(decoded) == 0 {
		return files, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.writeLimit)
	for i, d := range decoded {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := p.saver.Save(d.Filename, d.Bytes)
			if err != nil {
				return &FieldError{Field: d.QuestionID, Message: "Failed to save image: " + err.Error(), Err: err}
			}
			files[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, f := range files {
			if f != "" {
				_ = os.Remove(f)
			}
		}
		var fe *FieldError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FieldError{Field: decoded[0].QuestionID, Message: "Image upload failed", Err: err}
	}
	return files, nil
}

// merge folds one uploaded file into the responses. Attachments are appended
// to the question's attachment list; other images upgrade the answer value.
// A missing response item is created.
func merge(responses []ResponseItem, d *upload.Decoded, path string) []ResponseItem {
	for i := range responses {
		if responses[i].ID != d.QuestionID {
			continue
		}
		if d.IsAttachment {
			responses[i].Attachments = append(responses[i].Attachments, path)
		} else {
			responses[i].Value = responses[i].Value.appendPath(path)
		}
		return responses
	}

	if d.IsAttachment {
		return append(responses, ResponseItem{ID: d.QuestionID, Value: Text(""), Attachments: []string{path}})
	}
	return append(responses, ResponseItem{ID: d.QuestionID, Value: Text(path)})
}
