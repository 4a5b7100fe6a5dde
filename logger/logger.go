// Package logger configures application-wide structured logging and carries
// request-scoped logging context (correlation ids, extra key/values) through
// context.Context.
//
// Call ConfigureLogging once at startup, then use logger.Get(ctx) anywhere
// to obtain a *slog.Logger that already includes the correlation id of the
// inbound message being handled.
package logger

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// subsystem names the running service in every log line. Using atomic.Value
// to ensure thread-safe reads and writes.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes calls to ConfigureLoggingWithOptions, which mutate
// global state (slog.SetDefault and log.Default).
var configMutex sync.Mutex //nolint:gochecknoglobals

// It's considered good practice to use unexported custom types for context
// keys. This avoids collisions with other packages that might be using the
// same string values for their own keys.
type contextKey string

const (
	correlationKey contextKey = "correlation_id"
	identityKey    contextKey = "identity"
	valuesKey      contextKey = "loggerValues"
)

// Options is used to configure logging.
type Options struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	Output    io.Writer
}

// ConfigureLoggingWithOptions configures logging for the application and
// returns the default logger. Thread-safe, but concurrent calls are
// serialized because the function modifies global state.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	var handler slog.Handler

	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	} else {
		handler = slog.NewTextHandler(opts.Output, &slog.HandlerOptions{
			Level: opts.MinLevel,
		})
	}

	logger := slog.New(handler)

	slog.SetDefault(logger)

	// Redirect the legacy log package as well; third-party packages may
	// still write through it.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, slog.LevelInfo)

	subsystem.Store(opts.Subsystem)

	return logger
}

// ConfigureLogging configures logging from the environment:
// LOG_JSON enables the JSON handler, LOG_LEVEL sets the minimum level
// (debug, info, warn, error; default info).
func ConfigureLogging(app string) *slog.Logger {
	return ConfigureLoggingWithOptions(Options{
		Subsystem: app,
		JSON:      envBool("LOG_JSON"),
		MinLevel:  envLevel("LOG_LEVEL"),
	})
}

func envBool(name string) bool {
	v := strings.ToLower(os.Getenv(name))

	return v == "1" || v == "true" || v == "yes"
}

func envLevel(name string) slog.Level {
	switch strings.ToLower(os.Getenv(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithCorrelationID embeds a correlation id into the context. Every log line
// produced via Get and every downstream call made while handling the message
// carries this id, so failures can be traced end-to-end.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, correlationKey, id)
}

// GetCorrelationID returns the correlation id from the context. The second
// return value is false if no id is present.
func GetCorrelationID(ctx context.Context) (string, bool) { //nolint:contextcheck
	if ctx == nil {
		return "", false
	}

	id := ctx.Value(correlationKey)
	if id == nil {
		return "", false
	}

	val, ok := id.(string)
	if !ok || val == "" {
		return "", false
	}

	return val, true
}

// WithIdentity embeds the user identity (channel address) into the context
// so log lines can be attributed to a conversation.
func WithIdentity(ctx context.Context, identity string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity returns the user identity from the context, or "" if unset.
func GetIdentity(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		return ""
	}

	if val, ok := ctx.Value(identityKey).(string); ok {
		return val
	}

	return ""
}

// GetSubsystem returns the configured subsystem name.
func GetSubsystem() string {
	if sub := subsystem.Load(); sub != nil {
		if val, ok := sub.(string); ok {
			return val
		}
	}

	return ""
}

// Get returns a logger seeded with the subsystem, the correlation id and the
// identity from the context (when present), plus any key/values added with
// With. Pass no context for a bare logger.
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := getRealContext(ctx...)

	logger := slog.Default().With("subsystem", GetSubsystem())

	if id, ok := GetCorrelationID(realCtx); ok {
		logger = logger.With("correlation_id", id)
	}

	if identity := GetIdentity(realCtx); identity != "" {
		logger = logger.With("identity", identity)
	}

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}

// With returns a new context with the given key/value pairs added. The
// values are attached to every logger obtained from the context via Get.
func With(ctx context.Context, values ...any) context.Context {
	if len(values) == 0 && ctx != nil {
		// Corner case, don't bother creating a new context.
		return ctx
	}

	vals := append(getValues(ctx), values...)

	return context.WithValue(ctx, valuesKey, vals)
}

// getRealContext extracts the first non-nil context from a variadic list.
// If no context is provided or all are nil, it returns context.Background().
func getRealContext(ctx ...context.Context) context.Context {
	for _, c := range ctx {
		if c != nil {
			return c
		}
	}

	return context.Background()
}

func getValues(ctx context.Context) []any { //nolint:contextcheck
	if ctx == nil {
		return nil
	}

	if val, ok := ctx.Value(valuesKey).([]any); ok {
		return val
	}

	return nil
}
