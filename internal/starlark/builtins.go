package starlark

import (
	"context"
	"log/slog"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Predeclared returns the globals available to every rule script:
//
//	log.debug(msg, **attrs), log.info, log.warning, log.error
//	struct(**fields)
//
// print() output is sent to the logger at INFO.
func Predeclared(logger *slog.Logger) starlark.StringDict {
	return starlark.StringDict{
		"log": &starlarkstruct.Module{
			Name: "log",
			Members: starlark.StringDict{
				"debug":   logBuiltin(logger, "debug", slog.LevelDebug),
				"info":    logBuiltin(logger, "info", slog.LevelInfo),
				"warning": logBuiltin(logger, "warning", slog.LevelWarn),
				"error":   logBuiltin(logger, "error", slog.LevelError),
			},
		},
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
}

func logBuiltin(logger *slog.Logger, name string, level slog.Level) *starlark.Builtin {
	return starlark.NewBuiltin("log."+name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, nil, 1, &msg); err != nil {
			return nil, err
		}
		attrs := make([]slog.Attr, 0, len(kwargs)+1)
		attrs = append(attrs, slog.String("rule", thread.Name))
		for _, kv := range kwargs {
			key := string(kv[0].(starlark.String))
			value, err := ToGo(kv[1])
			if err != nil {
				value = kv[1].String()
			}
			attrs = append(attrs, slog.Any(key, value))
		}
		logger.LogAttrs(threadContext(thread), level, msg, attrs...)
		return starlark.None, nil
	})
}

// newThread creates the thread a rule runs on, carrying ctx for the bridge
// values.
func newThread(ctx context.Context, name string, logger *slog.Logger) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.InfoContext(ctx, strings.TrimRight(msg, "\n"), slog.String("rule", name))
		},
	}
	thread.SetLocal(contextKey, ctx)
	return thread
}
