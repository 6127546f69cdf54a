//go:build midicat

package main

import (
	_ "gitlab.com/gomidi/midi/v2/drivers/midicatdrv" // autoregisters driver, no cgo needed
)
