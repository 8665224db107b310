package internal

import (
	"bufio"
	"os"
	"runtime"
	"strings"
)

// DeviceInfo identifies which device last wrote a cloud backup.
type DeviceInfo struct {
	Hostname string `firestore:"hostname"`
	OS       string `firestore:"os"`
}

func GetDeviceInfo() DeviceInfo {
	return DeviceInfo{Hostname: GetHostname(), OS: GetOSVersion()}
}

func GetHostname() string {
	name, _ := os.Hostname()
	return name
}

func GetOSVersion() string {
	f, err := os.Open("/etc/os-release")
	if err == nil {
		defer f.Close()
		s := bufio.NewScanner(f)
		for s.Scan() {
			line := s.Text()
			if strings.HasPrefix(line, "PRETTY_NAME=") {
				return strings.Trim(line[len("PRETTY_NAME="):], "\"")
			}
		}
	}
	return runtime.GOOS + " " + runtime.GOARCH
}
