package session

// Output categories understood by DAP clients.
const (
	CategoryConsole = "console"
	CategoryStdout  = "stdout"
	CategoryStderr  = "stderr"
)

// Stop reasons reported with Stopped.
const (
	ReasonBreakpoint = "breakpoint"
	ReasonStep       = "step"
	ReasonPause      = "pause"
	ReasonEntry      = "entry"
	ReasonException  = "exception"
)

// Surface receives the events a Controller raises for the IDE. Calls may
// arrive from any goroutine.
type Surface interface {
	Output(category, text string)
	Stopped(reason string, threadID int, text string)
	Terminated()
}

type nopSurface struct{}

func (nopSurface) Output(string, string)       {}
func (nopSurface) Stopped(string, int, string) {}
func (nopSurface) Terminated()                 {}
