package builtin

import "github.com/silk-runtime/silk/pkg/plugin"

// Defaults returns the baseline plugin set in registration order.
func Defaults(appName, version string) []plugin.Plugin {
	return []plugin.Plugin{
		Ping{},
		AppInfo{AppName: appName, Version: version},
		FS{},
		&Clipboard{},
		Shell{},
	}
}
