package starter

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

var niceSigNames map[syscall.Signal]string
var niceNameToSigs map[string]syscall.Signal

func makeNiceSigNames() map[syscall.Signal]string {
	m := map[syscall.Signal]string{
		syscall.SIGABRT: "ABRT",
		syscall.SIGALRM: "ALRM",
		syscall.SIGHUP:  "HUP",
		syscall.SIGINT:  "INT",
		syscall.SIGKILL: "KILL",
		syscall.SIGQUIT: "QUIT",
		syscall.SIGTERM: "TERM",
	}

	// addPlatformDependentNiceSigNames() is defined in the files
	// containing build tags
	return addPlatformDependentNiceSigNames(m)
}

func init() {
	niceSigNames = makeNiceSigNames()
	niceNameToSigs = make(map[string]syscall.Signal)
	for sig, name := range niceSigNames {
		niceNameToSigs[name] = sig
	}
}

func signame(s os.Signal) string {
	if ss, ok := s.(syscall.Signal); ok {
		if name, ok := niceSigNames[ss]; ok {
			return name
		}
	}
	return fmt.Sprintf("UNKNOWN (%s)", s)
}

// SignalFromName looks up a signal by name. The name is case
// insensitive, and may carry the SIG prefix
func SignalFromName(n string) (os.Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(n))
	name = strings.TrimPrefix(name, "SIG")

	if sig, ok := niceNameToSigs[name]; ok {
		return sig, nil
	}
	return nil, fmt.Errorf("unknown signal '%s'", n)
}
