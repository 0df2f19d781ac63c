package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{Handler: slog.NewTextHandler(buf, nil)})
}

func TestWithComponentTagsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.WithComponent(ComponentWorker).InfoContext(context.Background(), "started")

	out := buf.String()
	if !strings.Contains(out, FieldComponent+"="+ComponentWorker) {
		t.Errorf("record missing component field: %s", out)
	}
}

func TestWithAttachesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	logger.With(FieldOperation, OpStartup).Info("started")

	out := buf.String()
	if !strings.Contains(out, FieldOperation+"="+OpStartup) {
		t.Errorf("record missing operation field: %s", out)
	}
}
