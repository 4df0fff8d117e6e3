package logger

import "time"

// NopLogger is a logger that discards all output. Used in tests.
type NopLogger struct{}

// Ensure NopLogger implements Interface
var _ Interface = (*NopLogger)(nil)

// NewNop returns a logger that discards all output.
func NewNop() *NopLogger { return &NopLogger{} }

func (n *NopLogger) Debug(string, ...any) {}
func (n *NopLogger) Info(string, ...any)  {}
func (n *NopLogger) Warn(string, ...any)  {}
func (n *NopLogger) Error(string, ...any) {}
func (n *NopLogger) Fatal(string, ...any) {}

func (n *NopLogger) With(...any) Interface                { return n }
func (n *NopLogger) WithSource(string) Interface          { return n }
func (n *NopLogger) WithComponent(string) Interface       { return n }
func (n *NopLogger) WithDuration(time.Duration) Interface { return n }
func (n *NopLogger) WithError(error) Interface            { return n }
