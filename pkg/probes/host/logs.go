package host

import (
	"context"

	"github.com/root0emir/SecuronisControlPanel/pkg/probes"
	"github.com/root0emir/SecuronisControlPanel/pkg/types"
)

const logTail = 10

func (h *prober) logProbes() []probes.Probe {
	return []probes.Probe{
		{Name: "journal_errors", Category: types.CategoryLog, Timeout: h.slowCommand(), Run: h.journalErrors},
		{Name: "kernel_warnings", Category: types.CategoryLog, Timeout: h.opts.CommandTimeout, Run: h.kernelWarnings},
	}
}

func (h *prober) journalErrors(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "journalctl", "-p", "err", "-n", "10", "--no-pager", "-q")
	if err != nil {
		return nil, err
	}
	return tail(nonEmptyLines(out), logTail), nil
}

func (h *prober) kernelWarnings(ctx context.Context) (any, error) {
	out, err := h.run(ctx, "dmesg", "--level=err,warn")
	if err != nil {
		return nil, err
	}
	return tail(nonEmptyLines(out), logTail), nil
}

func tail(lines []string, n int) LogLines {
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return LogLines(lines)
}
