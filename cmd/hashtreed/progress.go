package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/lauri000/hashtree/client"
)

// uploadBar renders putBlob's per-server upload progress (SPEC_FULL.md §10
// "CLI ergonomics"). On a non-terminal stdout it falls back to plain log lines, so
// scripted/piped invocations stay quiet and don't emit ANSI escapes.
type uploadBar struct {
	bar        *progressbar.ProgressBar
	isTerminal bool
}

func newUploadBar(size int) *uploadBar {
	isTerminal := isatty.IsTerminal(os.Stdout.Fd())
	if !isTerminal {
		return &uploadBar{isTerminal: false}
	}
	return &uploadBar{
		isTerminal: true,
		// Server count isn't known until PutBlob starts dialing servers, so
		// this runs as an indeterminate spinner (-1) rather than a
		// byte-accurate bar; size is kept in the signature for the label.
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(fmt.Sprintf("uploading %d bytes", size)),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionThrottle(65),
		),
	}
}

func (u *uploadBar) report(p client.UploadProgress) {
	if !u.isTerminal {
		if p.Err != nil {
			fmt.Fprintf(os.Stderr, "upload to %s failed: %v\n", p.Server, p.Err)
		} else if p.Done {
			fmt.Fprintf(os.Stderr, "upload to %s done\n", p.Server)
		}
		return
	}
	if p.Err != nil {
		u.bar.Describe(fmt.Sprintf("uploading (%s failed)", p.Server))
		return
	}
	if p.Done {
		u.bar.Describe(fmt.Sprintf("uploaded to %s", p.Server))
		u.bar.Add(1)
	}
}

func (u *uploadBar) finish() {
	if u.isTerminal {
		u.bar.Finish()
		fmt.Println()
	}
}
