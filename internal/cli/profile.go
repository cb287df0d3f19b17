package cli

// Profile parameterizes the command tree for one binary. logfind and prefind
// share every command and differ only here.
type Profile struct {
	// Name is the binary name. It also names the settings directory, the
	// environment prefix and the debug log.
	Name string
	// ConfigFile is the path regex dotfile, looked up in the config dir.
	ConfigFile string
	// DefaultRoot is the walk root used when neither flag, environment nor
	// settings file sets one.
	DefaultRoot string
	// Short is the one-line description shown in help.
	Short string
	// Examples seed the dotfile written by "config init".
	Examples []string
}

var (
	// Logfind searches log files, by default under /var/log.
	Logfind = Profile{
		Name:        "logfind",
		ConfigFile:  ".logfind",
		DefaultRoot: "/var/log",
		Short:       "Find log files whose contents match search terms",
		Examples:    []string{`[^/]*\.log$`, `apt/[^/]*\.log$`, `syslog`},
	}

	// Prefind searches any files, by default from the filesystem root.
	Prefind = Profile{
		Name:        "prefind",
		ConfigFile:  ".prefind",
		DefaultRoot: "/",
		Short:       "Find files whose paths and contents match regexes",
		Examples:    []string{`/etc/[^/]*\.conf$`, `/home/[^/]+/\.[^/]*rc$`},
	}
)
