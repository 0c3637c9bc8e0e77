package notifier

import (
	"context"
	"strings"

	"OpportunityScanner/internal/recorder"
)

// ScanFunc runs a scan in the given mode ("" for both).
type ScanFunc func(ctx context.Context, mode string) (*recorder.ScanRun, error)

// LastFunc returns the most recent run, or nil.
type LastFunc func() (*recorder.ScanRun, error)

// NewCommandHandler routes bot commands to the scan and history callbacks.
func NewCommandHandler(scan ScanFunc, last LastFunc) CommandHandler {
	return func(ctx context.Context, command string) string {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		// Group chats send "/scan@botname".
		cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

		switch cmd {
		case "/scan":
			mode := ""
			if len(fields) > 1 {
				mode = fields[1]
			}
			run, err := scan(ctx, mode)
			if err != nil {
				return FormatError(err)
			}
			return FormatScanReport(run)
		case "/last":
			run, err := last()
			if err != nil {
				return FormatError(err)
			}
			return FormatScanReport(run)
		case "/help", "/start":
			return FormatHelp()
		default:
			return ""
		}
	}
}
