// Package bridge wires sources, translators and sinks into the runners behind each mot
// subcommand. Every runner blocks in Run until the shared shutdown signal is raised or its
// source ends.
package bridge

import (
	"fmt"
	"strings"

	"github.com/jdginn/mot/devices"
	"github.com/jdginn/mot/message"
	"github.com/jdginn/mot/shutdown"
)

// Runner is one bridge direction.
type Runner interface {
	Run(sig *shutdown.Signal) error
}

// listenUntil feeds callback from src until sig is raised. Units that arrive after the raise
// are dropped.
func listenUntil(sig *shutdown.Signal, src devices.ByteSource, callback func(int64, message.Bytes)) error {
	if sig.Stopped() {
		return nil
	}
	stop, err := src.Listen(func(ts int64, msg message.Bytes) {
		if sig.Stopped() {
			return
		}
		callback(ts, msg)
	})
	if err != nil {
		return err
	}
	defer stop()
	<-sig.Done()
	return nil
}

// formatBytes renders msg as "[144, 64, 127]".
func formatBytes(msg message.Bytes) string {
	parts := make([]string, len(msg))
	for i, b := range msg {
		parts[i] = fmt.Sprint(b)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
