package loader

import (
	"fmt"
	"time"
)

// Probe command scripts. Each one is uploaded as the remote file "script"
// and executed by the probe line by line.
const (
	scriptFile = "script"

	powerOnNoisy = "nrst set \n" +
		"power on\n" +
		"target null\n" +
		"beep 4 50\n" +
		"beep 6 50\n" +
		"beep 4 50\n" +
		"beep 6 50\n" +
		"nrst clr\n" +
		"rst\n"

	powerOnQuiet = "nrst set \n" +
		"power on\n" +
		"target null\n" +
		"nrst clr\n" +
		"rst\n"

	resetNoisy = "rst\n" +
		"run\n" +
		"beep 7 125\n" +
		"beep 6 125\n" +
		"beep 5 125\n" +
		"connect\n"

	resetQuiet = "rst\n" +
		"run\n" +
		"connect\n"

	nrstNoisy = "release\n" +
		"beep 7 125\n" +
		"beep 6 125\n" +
		"beep 5 125\n" +
		"nrst\n" +
		"connect\n"

	nrstQuiet = "release\n" +
		"nrst\n" +
		"connect\n"

	targetConfig = "target %s force\n" +
		"target config\n" +
		"connect\n" +
		"sleep 4\n" +
		"halt\n" +
		"init\n"

	connectHalt = "connect\n halt\n"

	eraseCmd = "erase 0x%08x %d\n"

	powerOff = "release\n" +
		"target null\n" +
		"trst clr\n" +
		"idle 1\n" +
		"power off\n" +
		"beep 1\n" +
		"sleep 100\n" +
		"beep 1\n"

	errorPowerOff = "release\n" +
		"target null\n" +
		"trst clr\n" +
		"idle 1\n" +
		"power off\n" +
		"beep 7 125\n" +
		"beep 6 125\n" +
		"beep 5 125\n" +
		"beep 4 125\n" +
		"beep 3 125\n" +
		"beep 2 125\n"
)

func powerOnScript(quiet bool) string {
	if quiet {
		return powerOnQuiet
	}

	return powerOnNoisy
}

func resetScript(quiet, nrst bool) string {
	switch {
	case nrst && quiet:
		return nrstQuiet
	case nrst:
		return nrstNoisy
	case quiet:
		return resetQuiet
	default:
		return resetNoisy
	}
}

func targetConfigScript(target string) string {
	return fmt.Sprintf(targetConfig, target)
}

func eraseScript(addr uint32, size int) string {
	return fmt.Sprintf(eraseCmd, addr, size)
}

// RemoteName is the remote file an image is written to: its load address.
func RemoteName(addr uint32) string {
	return fmt.Sprintf("0x%08x", addr)
}

// EraseTimeout is how long the probe may take to erase size bytes of
// flash before acknowledging the erase script.
func EraseTimeout(size int) time.Duration {
	return 4*time.Second + time.Duration(size)*time.Second/16384
}
