// SPDX-License-Identifier: MPL-2.0

package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != slog.Default() {
		t.Error("empty context should yield slog.Default()")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := With(WithLogger(context.Background(), logger), "env", "py")
	FromContext(ctx).Info("hello")

	if out := buf.String(); !strings.Contains(out, "env=py") || !strings.Contains(out, "hello") {
		t.Errorf("log output = %q", out)
	}
}
