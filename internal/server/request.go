package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/auth"
	"github.com/zulandar/graderqueue/internal/job"
)

// uploadField is the multipart field carrying a solution file.
const uploadField = "solfile"

const (
	msgUnreadable = "Could not read request."
	msgTooLarge   = "Request too large."
)

// readRequest extracts the fields and optional upload of an API call.
func (s *Server) readRequest(c *gin.Context) (auth.RawRequest, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	switch mediaType {
	case "application/json":
		fields, err := jsonFields(c.Request.Body)
		if err != nil {
			return auth.RawRequest{}, bodyError(err)
		}
		return auth.RawRequest{Fields: fields}, nil

	case "multipart/form-data":
		if err := c.Request.ParseMultipartForm(s.maxUpload); err != nil {
			return auth.RawRequest{}, bodyError(err)
		}
		raw := auth.RawRequest{Fields: firstValues(c.Request.PostForm)}
		upload, err := readUpload(c)
		if err != nil {
			return auth.RawRequest{}, bodyError(err)
		}
		raw.Upload = upload
		return raw, nil

	default:
		if err := c.Request.ParseForm(); err != nil {
			return auth.RawRequest{}, bodyError(err)
		}
		return auth.RawRequest{Fields: firstValues(c.Request.PostForm)}, nil
	}
}

func readUpload(c *gin.Context) (*job.Upload, error) {
	fh, err := c.FormFile(uploadField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("server: read %s: %w", uploadField, err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("server: open %s: %w", uploadField, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("server: read %s: %w", uploadField, err)
	}
	return &job.Upload{Name: fh.Filename, Content: content}, nil
}

func firstValues(values map[string][]string) map[string]string {
	fields := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

// jsonFields decodes a JSON object body into request fields.
func jsonFields(r io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("server: decode json body: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("server: json body must be an object")
	}
	fields, err := auth.FlattenFields(obj)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	return fields, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return apperr.Parse(msgTooLarge, err)
	}
	return apperr.Parse(msgUnreadable, err)
}
