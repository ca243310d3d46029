package shared

import (
	"bytes"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("Defaults To Stderr", func(t *testing.T) {
		logger := NewLogger(nil)
		if logger == nil {
			t.Fatal("expected logger, got nil")
		}
	})

	t.Run("Writes To Provided Writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello")

		if buf.Len() == 0 {
			t.Error("expected log output, got none")
		}
	})

	t.Run("WithLogger Adds Fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "component", "queue")
		logger.Info("hello")

		if !bytes.Contains(buf.Bytes(), []byte("queue")) {
			t.Errorf("expected field in output, got %q", buf.String())
		}
	})
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("expected non-empty IDs")
	}
	if a == b {
		t.Errorf("expected distinct IDs, got %s twice", a)
	}
	if len(a) != 36 {
		t.Errorf("expected UUID string length 36, got %d", len(a))
	}
}

func TestNowMillis(t *testing.T) {
	before := NowMillis()
	after := NowMillis()

	if before <= 0 {
		t.Errorf("expected positive timestamp, got %d", before)
	}
	if after < before {
		t.Errorf("time went backwards: %d then %d", before, after)
	}
}
