package logger

type LevelWrapper struct {
	Base

	bound []any
}

func WrapLogger(l Base) Logger {
	return &LevelWrapper{Base: l}
}

func (w *LevelWrapper) Log(level LogLevel, msg string, kv ...any) {
	if len(w.bound) > 0 {
		merged := make([]any, 0, len(w.bound)+len(kv))
		merged = append(merged, w.bound...)
		merged = append(merged, kv...)
		kv = merged
	}

	w.Base.Log(level, msg, kv...)
}

func (w *LevelWrapper) With(kv ...any) Logger {
	bound := make([]any, 0, len(w.bound)+len(kv))
	bound = append(bound, w.bound...)
	bound = append(bound, kv...)

	return &LevelWrapper{Base: w.Base, bound: bound}
}

func (w *LevelWrapper) Debug(msg string, kv ...any) {
	w.Log(DebugLevel, msg, kv...)
}

func (w *LevelWrapper) Info(msg string, kv ...any) {
	w.Log(InfoLevel, msg, kv...)
}

func (w *LevelWrapper) Warn(msg string, kv ...any) {
	w.Log(WarnLevel, msg, kv...)
}

func (w *LevelWrapper) Error(msg string, kv ...any) {
	w.Log(ErrorLevel, msg, kv...)
}
