package session

import (
	"io"
	"socket-client/application/http"
	"socket-client/application/http/actor/client"
	"socket-client/application/util/target"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Display writes everything meant for the user.
type Display struct {
	w io.Writer

	ok, fail, warn, info, dim *color.Color
}

func NewDisplay(w io.Writer, noColor bool) *Display {
	d := &Display{
		w:    w,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed),
		warn: color.New(color.FgYellow),
		info: color.New(color.FgCyan),
		dim:  color.New(color.Faint),
	}

	if noColor {
		for _, c := range []*color.Color{d.ok, d.fail, d.warn, d.info, d.dim} {
			c.DisableColor()
		}
	}

	return d
}

func (d *Display) Summary(sum client.Summary) {
	d.ok.Fprintln(d.w, "[✓] Connection established.")
	d.dim.Fprintf(d.w, "    - Local:  %s\n", sum.Local)
	d.dim.Fprintf(d.w, "    - Remote: %s\n", sum.Remote)
	d.dim.Fprintf(d.w, "    - Type:   %s\n", sum.Channel)
	if sum.TLS != nil {
		d.dim.Fprintf(d.w, "    - TLS:    %s, %s\n", sum.TLS.Version, sum.TLS.CipherSuite)
	}
	if sum.RTT > 0 {
		d.dim.Fprintf(d.w, "    - RTT:    %s\n", sum.RTT)
	}
}

func (d *Display) Sent(n int) {
	d.info.Fprintf(d.w, "[>] Request sent (%d bytes), waiting for response...\n\n", n)
}

func (d *Display) Response(res *client.Response) {
	if res.TimedOut {
		d.warn.Fprintln(d.w, "[!] Read timed out, showing what was received.")
	}
	d.ok.Fprintf(d.w, "[<] Response received (%d bytes):\n\n", res.Len())
	io.WriteString(d.w, res.Text())
	io.WriteString(d.w, "\n")
}

func (d *Display) Notice(msg string) {
	d.warn.Fprintf(d.w, "[!] %s\n", msg)
}

func (d *Display) Failure(err error) {
	d.fail.Fprintf(d.w, "[x] %s: %v\n", Describe(err), err)
}

func (d *Display) Stats(stats *Stats) {
	if stats.Attempted() == 0 {
		return
	}
	d.info.Fprintf(d.w, "[i] %d cycles, %d succeeded. Latency p50 %s, p99 %s.\n",
		stats.Attempted(), stats.Succeeded(), stats.Percentile(50), stats.Percentile(99))
}

// Describe names the failure category of err.
func Describe(err error) string {
	switch {
	case errors.Is(err, target.ErrInvalidTarget):
		return "Invalid URL"
	case errors.Is(err, http.ErrInvalidMethod):
		return "Invalid method"
	case errors.Is(err, http.ErrInvalidPayload):
		return "Invalid body, it must be JSON"
	case errors.Is(err, client.ErrNameResolution):
		return "DNS resolution error"
	case errors.Is(err, client.ErrConnection):
		return "Connection error"
	case errors.Is(err, client.ErrTLSHandshake):
		return "TLS handshake error"
	case errors.Is(err, client.ErrSocket):
		return "Socket error"
	default:
		return "Unexpected error"
	}
}
