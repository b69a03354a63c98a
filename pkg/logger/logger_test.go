package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerInitWithNilWriter(t *testing.T) {
	if err := InitWithWriter(nil); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Get().Info(context.Background(), "activity stored", String("id", "a-1"), Bool("fallback", true))

	out := buf.String()
	for _, want := range []string{"activity stored", "id=a-1", "fallback=true", "source="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got %q", want, out)
		}
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("store").With(String("session", "s-1")).Warn(context.Background(), "fallback used")

	out := buf.String()
	if !strings.Contains(out, "component=store") || !strings.Contains(out, "session=s-1") {
		t.Errorf("expected component and session attributes, got %q", out)
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	Get().Debug(context.Background(), "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("debug record written at info level")
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Debug(context.Background(), "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatal("debug record missing at debug level")
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestDiscard(t *testing.T) {
	l := Discard().Named("quiet").With(String("k", "v"))
	l.Error(context.Background(), "dropped")
	l.Info(nil, "dropped") //nolint:staticcheck // nil ctx is tolerated
}

func TestSlogSharesHandler(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Slog().Info("supervisor event", "service", "http-server")
	if !strings.Contains(buf.String(), "service=http-server") {
		t.Errorf("expected slog record in shared output, got %q", buf.String())
	}
}
