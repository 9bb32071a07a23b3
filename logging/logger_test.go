package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/ChewyGumball/bengine-sub000/logging"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	g := NewWithT(t)

	g.Expect(logging.Logger().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
}

func TestSetLoggerAndOr(t *testing.T) {
	g := NewWithT(t)
	defer logging.SetLogger(nil)

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	logging.SetLogger(l)
	g.Expect(logging.Logger()).To(BeIdenticalTo(l))

	logging.Or(nil).Info("device selected", "name", "fake")
	g.Expect(buf.String()).To(ContainSubstring("device selected"))

	other := logging.Nop()
	g.Expect(logging.Or(other)).To(BeIdenticalTo(other))
}
