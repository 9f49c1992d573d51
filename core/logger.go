package core

// Logger is the application-wide logging contract.
// Args may carry errors, structured maps or a user value for upstream reporters.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
