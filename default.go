package log

import "time"

// std is the package-level default System, lazily constructed on
// first use with DefaultConfig. Most callers never construct a System
// directly; they call the package-level functions below, which all
// delegate to std. Tests and multi-instance callers should construct
// their own System via New instead, per §9's "private instance to
// isolate state" guidance.
var std *System

func stdSystem() *System {
	if std == nil {
		sys, err := New(DefaultConfig())
		if err != nil {
			// DefaultConfig always validates; reaching here means the
			// defaults themselves are broken, a programming error.
			panic(err)
		}
		std = sys
	}
	return std
}

// Default returns the package-level default System, constructing it on
// first call.
func Default() *System { return stdSystem() }

// SetDefault replaces the package-level default System, for callers
// that built a custom System via New and want the package-level
// functions to delegate to it.
func SetDefault(sys *System) { std = sys }

func RegisterAppendLog(path string) (*Handle, error) {
	return stdSystem().RegisterAppendLog(path)
}

func RegisterSizeRotatedLog(path string, maxBytes int64, rotateThrough int) (*Handle, error) {
	return stdSystem().RegisterSizeRotatedLog(path, maxBytes, rotateThrough)
}

func RegisterIntervalRotatedLog(path string, interval time.Duration, rotateThrough int) (*Handle, error) {
	return stdSystem().RegisterIntervalRotatedLog(path, interval, rotateThrough)
}

func RegisterDailyRotatedLog(path string, hour, minute, second int) (*Handle, error) {
	return stdSystem().RegisterDailyRotatedLog(path, hour, minute, second)
}

func RegisterDatagram(host, port string, v6 bool) (*Handle, error) {
	return stdSystem().RegisterDatagram(host, port, v6)
}

func NewProducer() *Producer { return stdSystem().NewProducer() }

func SetLevel(tag string) { stdSystem().SetLevel(tag) }

func SetDiskSpaceThreshold(pct float64) { stdSystem().SetDiskSpaceThreshold(pct) }

func Flush() { stdSystem().Flush() }

func Shutdown() { stdSystem().Shutdown() }
