package starter

import "strconv"

const portFlag = "--port"

// ValidateCommand produces the argument vector used to launch a
// plugin. Templates that already carry a port flag are returned as
// they are; the caller specified the endpoint itself. Otherwise the
// address and port are appended as separate arguments.
// An empty template yields an empty vector
func ValidateCommand(template []string, address string, port int) []string {
	if len(template) == 0 {
		return []string{}
	}

	argv := make([]string, len(template), len(template)+4)
	copy(argv, template)
	for _, arg := range template {
		if arg == portFlag {
			return argv
		}
	}
	return append(argv, "--address", address, portFlag, strconv.Itoa(port))
}

// ResolvedCommand returns the command line Start would execute
func (s *Supervisor) ResolvedCommand() []string {
	return ValidateCommand(s.command, s.address, s.port)
}
