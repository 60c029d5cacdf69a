package collab

import (
	"context"
	"log"
	"os/exec"
	"runtime"
	"sync"
)

// Notifier sends fire-and-forget desktop notifications. Every call to Send
// spawns the OS notifier tool and returns immediately; a failure to notify
// is logged, never propagated, since a missed desktop notification is never
// worth blocking or failing a loop iteration over.
type Notifier struct{}

var (
	notifierBackend     string
	notifierBackendOnce sync.Once
)

// resolveBackend picks the platform's notification command once per
// process, the same singleton-init shape the teacher uses for its
// publisher: lazy, cached, and safe to call from every Send.
func resolveBackend() string {
	notifierBackendOnce.Do(func() {
		switch runtime.GOOS {
		case "darwin":
			if _, err := exec.LookPath("osascript"); err == nil {
				notifierBackend = "osascript"
			}
		default:
			if _, err := exec.LookPath("notify-send"); err == nil {
				notifierBackend = "notify-send"
			}
		}
	})
	return notifierBackend
}

// Send fires a desktop notification with an optional sound name. It never
// blocks the caller past the subprocess spawn.
func (Notifier) Send(title, body, sound string) {
	backend := resolveBackend()
	if backend == "" {
		log.Printf("[notify] no desktop notifier available, dropping: %s — %s", title, body)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultCommandTimeout)
		defer cancel()

		var err error
		switch backend {
		case "osascript":
			script := "display notification " + appleScriptQuote(body) + " with title " + appleScriptQuote(title)
			if sound != "" {
				script += " sound name " + appleScriptQuote(sound)
			}
			_, err = runCommand(ctx, "", "osascript", []string{"-e", script}, DefaultCommandTimeout)
		case "notify-send":
			_, err = runCommand(ctx, "", "notify-send", []string{title, body}, DefaultCommandTimeout)
		}
		if err != nil {
			log.Printf("[notify] failed to send notification: %v", err)
		}
	}()
}

func appleScriptQuote(s string) string {
	out := "\""
	for _, r := range s {
		if r == '"' || r == '\\' {
			out += "\\"
		}
		out += string(r)
	}
	return out + "\""
}
