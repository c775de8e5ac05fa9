package log

import "fmt"

// PahoLogger adapts a Logger to the Println/Printf interface that the paho
// MQTT client accepts for its debug and error output.
type PahoLogger struct {
	l     Logger
	error bool
}

// NewPahoLogger returns a paho logger writing at debug level, or at error
// level when errors is set.
func NewPahoLogger(l Logger, errors bool) *PahoLogger {
	return &PahoLogger{l: l, error: errors}
}

func (p *PahoLogger) Println(v ...any) {
	p.write(fmt.Sprint(v...))
}

func (p *PahoLogger) Printf(format string, v ...any) {
	p.write(fmt.Sprintf(format, v...))
}

func (p *PahoLogger) write(msg string) {
	if p.error {
		p.l.Error(nil, msg)
		return
	}
	p.l.Debug(msg)
}
