//go:build !midicat

package main

import (
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver, supports virtual ports
)
